// Package gatekeeper guards HTTP handlers behind an IDM-issued token.
//
// Each request walks a fixed pipeline: CSRF header, credential extraction,
// verifier resolution, token verification, user lookup, and an optional
// authorizer. The first failing step denies the request with a 403 and
// a short tag in a response header; nothing else leaks to the client.
//
//	enf, err := gatekeeper.New(gatekeeper.Config{
//		Strategy:   gatekeeper.Static(verifier),
//		UserGetter: users.BySubject,
//	})
//	mux.Handle("GET /v1/me", enf.Middleware()(meHandler))
package gatekeeper
