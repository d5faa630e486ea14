// Package auth registers the OpenAPI document served under /swagger/.
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Path Check",
            "url": "https://github.com/Path-Check/safeplaces-auth"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/livez": {
            "get": {
                "description": "Liveness probe endpoint returning basic service health status, uptime, and version information\nThis endpoint always returns 200 OK if the service is running",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/http.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Readiness probe endpoint returning service health status and checks for critical dependencies\nIncludes uptime, version, and status of the database and the IDM connector",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/http.HealthResponse"}},
                    "503": {"description": "status, uptime, version, checks - service not ready", "schema": {"$ref": "#/definitions/http.HealthResponse"}}
                }
            }
        },
        "/v1/login": {
            "post": {
                "description": "Exchanges credentials for an access token, set as the access_token cookie.\nUsers with MFA enrolled receive 401 MFARequired and an mfa_token to continue with /v1/mfa/*.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Login"],
                "summary": "Log in with username and password",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Database id and highest role", "schema": {"$ref": "#/definitions/service.LoginResult"}},
                    "400": {"description": "Missing credentials", "schema": {"$ref": "#/definitions/httpx.APIError"}},
                    "401": {"description": "Wrong credentials or MFA required", "schema": {"$ref": "#/definitions/http.MFARequiredResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/httpx.APIError"}},
                    "500": {"description": "Identity provider or database error", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/logout": {
            "post": {
                "tags": ["Login"],
                "summary": "Log out",
                "responses": {"204": {"description": "Cookie cleared"}}
            }
        },
        "/v1/mfa/challenge": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Send an SMS code",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ChallengeResponse"}},
                    "401": {"description": "MFA token expired", "schema": {"$ref": "#/definitions/httpx.APIError"}},
                    "404": {"description": "No SMS authenticator enrolled", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/mfa/enroll": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Enroll an SMS authenticator",
                "parameters": [
                    {"description": "Phone number", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.EnrollRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/idm.Association"}},
                    "400": {"description": "Invalid phone number", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/mfa/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["MFA"],
                "summary": "Verify an SMS code",
                "parameters": [
                    {"description": "Code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.VerifyRequest"}}
                ],
                "responses": {
                    "204": {"description": "Access token cookie set"},
                    "403": {"description": "Invalid binding code", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/mfa/recover": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["MFA"],
                "summary": "Log in with a recovery code",
                "parameters": [
                    {"description": "Recovery code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.RecoverRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.RecoverResponse"}},
                    "401": {"description": "Invalid recovery code", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/me": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.MeResponse"}},
                    "403": {"description": "Denied, see the PCF-Request-Tag header"}
                }
            }
        },
        "/v1/users": {
            "get": {
                "security": [{"CookieAuth": []}],
                "description": "Lists every IDM user with its database id and highest role.",
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/service.UserView"}}},
                    "403": {"description": "Denied, see the PCF-Request-Tag header"},
                    "500": {"description": "Database or identity provider error", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            },
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Create a user",
                "parameters": [
                    {"description": "New user", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.CreateUserInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/service.CreatedUser"}},
                    "409": {"description": "User already exists", "schema": {"$ref": "#/definitions/httpx.APIError"}},
                    "422": {"description": "Missing attributes", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/users/reset-password": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["Users"],
                "summary": "Request a password reset email",
                "parameters": [
                    {"description": "Email", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ResetPasswordRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "429": {"description": "Too many requests", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/users/register": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["Users"],
                "summary": "Complete a registration",
                "parameters": [
                    {"description": "Name and password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.RegisterRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Invalid registration token", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/users/{id}": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Get a user",
                "parameters": [{"type": "string", "description": "Database id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.UserView"}},
                    "404": {"description": "User does not exist", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            },
            "delete": {
                "security": [{"CookieAuth": []}],
                "tags": ["Users"],
                "summary": "Delete a user",
                "parameters": [{"type": "string", "description": "Database id", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            },
            "patch": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "tags": ["Users"],
                "summary": "Update a user's name",
                "parameters": [
                    {"type": "string", "description": "Database id", "name": "id", "in": "path", "required": true},
                    {"description": "New name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.UpdateUserRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "422": {"description": "Missing attributes", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        },
        "/v1/users/{id}/reset-mfa": {
            "post": {
                "security": [{"CookieAuth": []}],
                "tags": ["Users"],
                "summary": "Reset a user's MFA",
                "parameters": [{"type": "string", "description": "Database id", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/v1/users/{id}/role": {
            "put": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "tags": ["Users"],
                "summary": "Change a user's role",
                "parameters": [
                    {"type": "string", "description": "Database id", "name": "id", "in": "path", "required": true},
                    {"description": "Role", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.AssignRoleRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Unknown role", "schema": {"$ref": "#/definitions/httpx.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "http.AssignRoleRequest": {"type": "object", "properties": {"role": {"type": "string", "example": "contact_tracer"}}},
        "http.ChallengeResponse": {"type": "object", "properties": {"oob_code": {"type": "string"}}},
        "http.EnrollRequest": {"type": "object", "properties": {"phone_number": {"type": "string", "example": "+15555550100"}}},
        "http.HealthChecks": {"type": "object", "properties": {"database": {"type": "string"}, "idm": {"type": "string"}}},
        "http.HealthResponse": {"type": "object", "properties": {"checks": {"$ref": "#/definitions/http.HealthChecks"}, "status": {"type": "string"}, "uptime": {"type": "string"}, "version": {"type": "string"}}},
        "http.LoginRequest": {"type": "object", "properties": {"password": {"type": "string", "example": "correct horse battery staple"}, "username": {"type": "string", "example": "tracer@example.org"}}},
        "http.MFARequiredResponse": {"type": "object", "properties": {"error": {"type": "string"}, "errorCode": {"type": "string"}, "message": {"type": "string"}, "mfa_token": {"type": "string"}, "statusCode": {"type": "integer"}}},
        "http.MeResponse": {"type": "object", "properties": {"created_at": {"type": "string"}, "id": {"type": "string"}, "organization_id": {"type": "string"}, "role": {"type": "string"}, "username": {"type": "string"}}},
        "http.RecoverRequest": {"type": "object", "properties": {"recovery_code": {"type": "string"}}},
        "http.RecoverResponse": {"type": "object", "properties": {"recovery_code": {"type": "string"}}},
        "http.RegisterRequest": {"type": "object", "properties": {"name": {"type": "string"}, "password": {"type": "string"}}},
        "http.ResetPasswordRequest": {"type": "object", "properties": {"email": {"type": "string", "example": "tracer@example.org"}}},
        "http.UpdateUserRequest": {"type": "object", "properties": {"name": {"type": "string", "example": "Jane Tracer"}}},
        "http.VerifyRequest": {"type": "object", "properties": {"binding_code": {"type": "string", "example": "123456"}, "oob_code": {"type": "string"}}},
        "httpx.APIError": {"type": "object", "properties": {"error": {"type": "string"}, "errorCode": {"type": "string"}, "message": {"type": "string"}, "statusCode": {"type": "integer"}}},
        "idm.Association": {"type": "object", "properties": {"authenticator_type": {"type": "string"}, "barcode_uri": {"type": "string"}, "binding_method": {"type": "string"}, "oob_channel": {"type": "string"}, "oob_code": {"type": "string"}, "recovery_codes": {"type": "array", "items": {"type": "string"}}, "secret": {"type": "string"}}},
        "service.CreateUserInput": {"type": "object", "properties": {"email": {"type": "string"}, "organization_id": {"type": "string"}, "redirect_url": {"type": "string"}, "role": {"type": "string"}}},
        "service.CreatedUser": {"type": "object", "properties": {"id": {"type": "string"}, "registration_url": {"type": "string"}}},
        "service.LoginResult": {"type": "object", "properties": {"id": {"type": "string"}, "role": {"type": "string"}}},
        "service.UserView": {"type": "object", "properties": {"created_at": {"type": "string"}, "email": {"type": "string"}, "email_verified": {"type": "boolean"}, "id": {"type": "string"}, "last_login": {"type": "string"}, "name": {"type": "string"}, "role": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"description": "MFA or registration token. Format: \"Bearer {token}\".", "type": "apiKey", "name": "Authorization", "in": "header"},
        "CookieAuth": {"description": "Access token set by /v1/login or /v1/mfa/verify.", "type": "apiKey", "name": "access_token", "in": "cookie"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "SafePlaces Authentication Service API",
	Description:      "Login, MFA and user management in front of the identity provider.\n\nBrowser clients authenticate with the access_token cookie and must send X-Requested-With: XMLHttpRequest.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
