/*
Package idm talks to the external identity provider (an Auth0-compatible
tenant) on behalf of the SafePlaces backend.

# Connector

A Connector wraps two surfaces of the provider:

  - the Management API (/api/v2), authenticated with a client-credentials
    token the Connector fetches and keeps fresh on its own;
  - the Authentication API (/oauth/token, /mfa/*, /dbconnections/*), used
    for end-user logins and MFA flows.

Create one and prime its caches before serving traffic:

	conn, err := idm.New(idm.Config{
		BaseURL:      "https://tenant.example.auth0.com",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Audience:     "https://tenant.example.auth0.com/api/v2/",
		Realm:        "Username-Password-Authentication",
	})
	if err := conn.Init(ctx); err != nil {
		// no management token or role table
	}

# Caching

The management token lives in a cachex.Expiring: callers within two minutes
of expiry wait for a new token, callers within thirty minutes get the
current one while a refresh runs in the background.

Roles are different. The RoleTable is loaded once in Init and only reloaded
when a lookup misses, since roles change on human timescales and a miss is
the only signal that matters.

# Errors

Non-2xx responses come back as *Error carrying the status and raw body.
Use errors.Is with ErrConflict, ErrTooManyRequests or ErrNotFound rather
than inspecting status codes by hand:

	if _, err := conn.CreateUser(ctx, email); errors.Is(err, idm.ErrConflict) {
		// already exists
	}

Logins that need a second factor return *MFARequiredError with the token
to continue the flow.

# Reconciliation

Reconciler compares the provider's users with the application database,
reports drift, and optionally deletes the orphaned side.
*/
package idm
