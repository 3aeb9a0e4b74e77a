// Package docs holds the OpenAPI document served by the swagger UI.
package docs

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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness and selected device",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["health"],
                "summary": "Readiness",
                "responses": {
                    "200": {"description": "ready"},
                    "503": {"description": "loading"}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Engine status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/translate": {
            "post": {
                "description": "Translates the given text from the source to the target language.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["translate"],
                "summary": "Translate text",
                "parameters": [
                    {
                        "description": "text to translate",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.TranslateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TranslateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Invalid JSON"},
                "details": {"type": "string"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "device": {"type": "string", "example": "cuda"}
            }
        },
        "types.TranslateRequest": {
            "type": "object",
            "properties": {
                "text": {"type": "string", "example": "කසළ රෝගය"}
            }
        },
        "types.TranslateResponse": {
            "type": "object",
            "properties": {
                "input": {"type": "string", "example": "කසළ රෝගය"},
                "translation": {"type": "string", "example": "Cholera"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "device": {"type": "string", "example": "cpu"},
                "backend": {"type": "string", "example": "server"},
                "queue_len": {"type": "integer"},
                "inflight": {"type": "integer"},
                "max_queue_depth": {"type": "integer"},
                "translations_total": {"type": "integer"},
                "failures_total": {"type": "integer"},
                "memory_hits_total": {"type": "integer"},
                "last_error": {"type": "string"},
                "load_ms": {"type": "integer"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "translatord API",
	Description:      "Sinhala to English translation over HTTP.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
