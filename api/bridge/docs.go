// Package bridge registers the swagger document for the bridge's HTTP
// surface.
package bridge

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/register": {
            "post": {
                "tags": ["oauth2"],
                "summary": "Register an OAuth client",
                "description": "Dynamic client registration per RFC 7591. Client id and secret are server-generated; the secret is returned once.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "invalid_client_metadata"}
                }
            }
        },
        "/authorize": {
            "get": {
                "tags": ["oauth2"],
                "summary": "Start an authorization flow",
                "description": "Validates the request and redirects to the upstream identity provider. PKCE is mandatory.",
                "responses": {
                    "302": {"description": "Found"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "invalid_client"}
                }
            }
        },
        "/callback": {
            "get": {
                "tags": ["oauth2"],
                "summary": "Upstream provider callback",
                "description": "Completes the upstream leg and redirects the original client with a freshly minted code.",
                "responses": {
                    "302": {"description": "Found"},
                    "400": {"description": "Bad Request"},
                    "502": {"description": "temporarily_unavailable"}
                }
            }
        },
        "/token": {
            "post": {
                "tags": ["oauth2"],
                "summary": "Redeem a grant",
                "description": "Exchanges an authorization code or refresh token for an access token.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "invalid_grant"},
                    "401": {"description": "invalid_client"}
                }
            }
        },
        "/introspect": {
            "post": {
                "tags": ["oauth2"],
                "summary": "Introspect a token",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/revoke": {
            "post": {
                "tags": ["oauth2"],
                "summary": "Revoke a refresh token",
                "consumes": ["application/x-www-form-urlencoded"],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "invalid_client"}
                }
            }
        },
        "/.well-known/oauth-authorization-server": {
            "get": {
                "tags": ["discovery"],
                "summary": "Authorization server metadata",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clients": {
            "get": {
                "tags": ["admin"],
                "summary": "List registered clients",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/clients/{id}": {
            "delete": {
                "tags": ["admin"],
                "summary": "Revoke a client",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"https"},
	Title:            "AuthBridge",
	Description:      "OAuth 2.1 dynamic client registration bridging proxy",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
