// Package swagger registers the OpenAPI document served under /docs. It follows the handler
// annotations in internal/transport/http/handlers and must be updated with them.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Public"],
                "summary": "Retrieve JSON Web Key Set",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Service health check",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Service readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReadinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ReadinessResponse"}}
                }
            }
        },
        "/api/v1/identity": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Caller identity",
                "description": "Reports the identity verified from the request's bearer token; identity is null for visitors.",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.IdentityStateResponse"}}}
            }
        },
        "/api/v1/service/identity": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Service"],
                "summary": "Service identity state",
                "description": "Reports the process-wide identity. is_loading stays true until the first auth transition.",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.IdentityStateResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/service/session": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Service"],
                "summary": "Sign the service identity in",
                "parameters": [
                    {"description": "Signed identity token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SignInRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.IdentitySummary"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Service"],
                "summary": "Sign the service identity out",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Notifications"],
                "summary": "Recent notifications",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.NotificationsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Notifications"],
                "summary": "Clear notifications",
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/collections/{collection}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Query a collection",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "description": "field:op:value filter", "name": "where", "in": "query"},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "description": "field[:desc] ordering", "name": "order", "in": "query"},
                    {"type": "integer", "description": "Maximum number of results", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Add a document with a generated id",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"description": "Document fields", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.WriteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreatedResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/collections/{collection}/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Read one document",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Document id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Replace or merge a document",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Document id", "name": "id", "in": "path", "required": true},
                    {"description": "Document fields and merge flag", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.WriteRequest"}}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.AcceptedResponse"}}}
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Patch fields of an existing document",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Document id", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.WriteRequest"}}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.AcceptedResponse"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Delete a document",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Document id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.AcceptedResponse"}}}
            }
        },
        "/api/v1/watch/{collection}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "tags": ["Documents"],
                "summary": "Watch a collection query",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/watch/{collection}/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "tags": ["Documents"],
                "summary": "Watch one document",
                "parameters": [
                    {"type": "string", "description": "Collection name", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Document id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "domain.Toast": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "description": {"type": "string"},
                "title": {"type": "string"},
                "variant": {"type": "string"}
            }
        },
        "handlers.AcceptedResponse": {
            "type": "object",
            "properties": {"operation": {"type": "string"}, "path": {"type": "string"}}
        },
        "handlers.CreatedResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "path": {"type": "string"}}
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "trace_id": {"type": "string"}}
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {"started_at": {"type": "string"}, "status": {"type": "string"}}
        },
        "handlers.IdentityStateResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "identity": {"$ref": "#/definitions/handlers.IdentitySummary"},
                "is_loading": {"type": "boolean"}
            }
        },
        "handlers.IdentitySummary": {
            "type": "object",
            "properties": {
                "anonymous": {"type": "boolean"},
                "display_name": {"type": "string"},
                "email": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "uid": {"type": "string"}
            }
        },
        "handlers.ListResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "items": {"type": "array", "items": {"type": "object", "additionalProperties": true}}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "handlers.NotificationsResponse": {
            "type": "object",
            "properties": {
                "notifications": {"type": "array", "items": {"$ref": "#/definitions/domain.Toast"}}
            }
        },
        "handlers.ReadinessResponse": {
            "type": "object",
            "properties": {
                "checks": {"type": "object", "additionalProperties": {"type": "string"}},
                "status": {"type": "string"}
            }
        },
        "handlers.SignInRequest": {
            "type": "object",
            "required": ["token"],
            "properties": {"background": {"type": "boolean"}, "token": {"type": "string"}}
        },
        "handlers.WriteRequest": {
            "type": "object",
            "required": ["data"],
            "properties": {
                "data": {"type": "object", "additionalProperties": true},
                "merge": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Identity token as \"Bearer <token>\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Studio Admin API",
	Description:      "Collection reads, live watches and non-blocking writes for the studio booking admin.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
