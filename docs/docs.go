// Package docs registers the OpenAPI description of the HTTP API with swag.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {"get": {"tags": ["Health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/ready": {"get": {"tags": ["Health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/version": {"get": {"tags": ["Health"], "summary": "Get API version", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/events": {"post": {"security": [{"BearerAuth": []}], "tags": ["Events"], "summary": "Submit a lifecycle event", "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}}}},
        "/api/v1/documents/index": {"post": {"security": [{"BearerAuth": []}], "tags": ["Documents"], "summary": "Index a document", "responses": {"200": {"description": "OK"}, "422": {"description": "Provider not configured"}}}},
        "/api/v1/documents/{id}/index": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Documents"], "summary": "Get a document's indexed metadata", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["Documents"], "summary": "Remove a document from the index", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/search": {"post": {"security": [{"BearerAuth": []}], "tags": ["Search"], "summary": "Similarity search", "responses": {"200": {"description": "OK"}, "429": {"description": "Too Many Requests"}}}},
        "/api/v1/chat": {"post": {"security": [{"BearerAuth": []}], "tags": ["Chat"], "summary": "Grounded chat", "produces": ["text/event-stream"], "responses": {"200": {"description": "event stream"}, "422": {"description": "Provider not configured"}}}},
        "/api/v1/index/status": {"get": {"security": [{"BearerAuth": []}], "tags": ["Status"], "summary": "Indexing status", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/settings": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Settings"], "summary": "Get team settings", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["Settings"], "summary": "Update team settings", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Sercha RAG API",
	Description:      "Document indexing, retrieval and grounded chat for a knowledge base.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
