// Package docs holds the OpenAPI description served at /swagger/.
// Regenerate with: swag init -g cmd/campus-rag/main.go
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
        "/ask": {
            "post": {
                "description": "Answers a question from the knowledge base, falling back to live web search when no document is relevant",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ask"],
                "summary": "Ask the campus assistant",
                "parameters": [
                    {
                        "description": "Question",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.AskRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AskResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports vector index, Redis and runtime status. Only the vector index is required for a healthy result.",
                "produces": ["application/json"],
                "tags": ["general"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.AskRequest": {
            "type": "object",
            "properties": {
                "query": {"description": "The user's question, 3..500 characters", "type": "string"}
            }
        },
        "models.AskResponse": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "cached": {"type": "boolean"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "models.HealthResponse": {
            "type": "object",
            "properties": {
                "redis": {"description": "\"ok\", \"down\" or \"disabled\"", "type": "string"},
                "runtime": {"description": "\"ready\", \"pending\" or \"failed\"", "type": "string"},
                "status": {"description": "\"healthy\" or \"unhealthy\"", "type": "string"},
                "timestamp": {"type": "string"},
                "vector_index": {"description": "\"ok\" or \"down\"", "type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "UIN Salatiga Campus Assistant API",
	Description:      "Retrieval-augmented question answering for UIN Salatiga with web search fallback",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
