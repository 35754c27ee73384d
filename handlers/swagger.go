package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the collab service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>gogotex-collab - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the document, lock, history and comment endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "gogotex-collab", "version": "v0.2.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "ChangeOp": { "type": "object", "properties": { "type": { "type": "string", "enum": ["insert", "delete", "replace"] }, "position": { "type": "integer" }, "length": { "type": "integer" }, "content": { "type": "string" } } },
      "Error": { "type": "object", "properties": { "error": { "type": "string" }, "code": { "type": "string" } } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/documents": {
      "get": { "summary": "List documents", "responses": { "200": { "description": "document summaries" } } },
      "post": { "summary": "Create a document", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"content":{"type":"string"},"collaborators":{"type":"array","items":{"type":"string"}}}}}}}, "responses": { "201": { "description": "created at version 0" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document", "responses": { "200": { "description": "document" }, "404": { "description": "NOT_FOUND" } } },
      "delete": { "summary": "Delete a document", "responses": { "204": { "description": "deleted" }, "404": { "description": "NOT_FOUND" } } }
    },
    "/api/documents/{id}/collaborators": {
      "post": { "summary": "Add a collaborator", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"userId":{"type":"string"}}}}}}, "responses": { "200": { "description": "document" } } }
    },
    "/api/documents/{id}/lock": {
      "post": { "summary": "Acquire the edit lock", "responses": { "200": { "description": "{acquired: bool}" } } },
      "delete": { "summary": "Release the edit lock", "responses": { "200": { "description": "{released: bool}" } } }
    },
    "/api/documents/{id}/edits": {
      "post": { "summary": "Apply an edit", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"ops":{"type":"array","items":{"$ref":"#/components/schemas/ChangeOp"}}}}}}}, "responses": { "200": { "description": "document at the new version" }, "409": { "description": "LOCK_CONFLICT or VERSION_CONFLICT" }, "422": { "description": "MALFORMED_CHANGE" } } }
    },
    "/api/documents/{id}/history": {
      "get": { "summary": "Change records in version order", "responses": { "200": { "description": "change records" } } }
    },
    "/api/documents/{id}/versions/{version}": {
      "get": { "summary": "Reconstruct a version", "responses": { "200": { "description": "content at version" }, "404": { "description": "VERSION_NOT_FOUND" } } }
    },
    "/api/documents/{id}/versions/{version}/export": {
      "post": { "summary": "Export a version to object storage", "responses": { "200": { "description": "export record with download URL" }, "503": { "description": "object storage not configured" } } }
    },
    "/api/documents/{id}/compare": {
      "get": { "summary": "Diff two versions", "parameters": [ { "name": "from", "in": "query", "required": true, "schema": { "type": "integer" } }, { "name": "to", "in": "query", "required": true, "schema": { "type": "integer" } } ], "responses": { "200": { "description": "comparison" } } }
    },
    "/api/documents/{id}/verify": {
      "get": { "summary": "Replay the change log against the stored content", "responses": { "200": { "description": "verification" } } }
    },
    "/api/documents/{id}/comments": {
      "get": { "summary": "List comments", "responses": { "200": { "description": "comments with replies" } } },
      "post": { "summary": "Add a comment", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"content":{"type":"string"}}}}}}, "responses": { "201": { "description": "comment" } } }
    },
    "/api/comments/{commentId}/resolve": {
      "post": { "summary": "Resolve a comment", "responses": { "200": { "description": "comment" } } }
    },
    "/api/comments/{commentId}/replies": {
      "post": { "summary": "Reply to a comment", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"content":{"type":"string"}}}}}}, "responses": { "201": { "description": "reply" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
