package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the document API.
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
    <title>docstore - Swagger</title>
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

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docstore", "version": "v1.0.0" },
  "components": {
    "schemas": {
      "Document": {
        "type": "object",
        "properties": {
          "id": {"type":"integer","format":"uint64"},
          "name": {"type":"string"},
          "owner": {"type":"string"},
          "namespace": {"type":"string"},
          "payload": {"type":"string","description":"present only on get"},
          "created": {"type":"string","format":"date-time"},
          "updated": {"type":"string","format":"date-time"}
        }
      },
      "Error": { "type": "string" }
    }
  },
  "paths": {
    "/api/v1/documents/create": {
      "post": {
        "summary": "Create a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["name","owner","namespace","payload"],"properties":{"name":{"type":"string"},"owner":{"type":"string"},"namespace":{"type":"string"},"payload":{"type":"string"}}}}}},
        "responses": { "200": { "description": "created document without payload", "content": {"application/json": {"schema": {"$ref":"#/components/schemas/Document"}}} }, "400": { "description": "missing or mistyped key" } }
      }
    },
    "/api/v1/documents/get": {
      "get": {
        "summary": "Get a document with its payload",
        "parameters": [ {"name":"id","in":"query","required":true,"schema":{"type":"integer"}} ],
        "responses": { "200": { "description": "document", "content": {"application/json": {"schema": {"$ref":"#/components/schemas/Document"}}} }, "400": { "description": "id missing or invalid" }, "404": { "description": "no such document" } }
      }
    },
    "/api/v1/documents/list": {
      "get": { "summary": "List documents in creation order, without payload", "responses": { "200": { "description": "{items: [...]}" } } }
    },
    "/api/v1/documents/update": {
      "post": {
        "summary": "Update some fields of a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["id"],"properties":{"id":{"type":"integer"},"name":{"type":"string"},"owner":{"type":"string"},"namespace":{"type":"string"},"payload":{"type":"string"}}}}}},
        "responses": { "200": { "description": "updated document without payload" }, "400": { "description": "Key 'id' is required." }, "404": { "description": "no such document" } }
      }
    },
    "/api/v1/documents/delete": {
      "post": {
        "summary": "Delete a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["id"],"properties":{"id":{"type":"integer"}}}}}},
        "responses": { "200": { "description": "deleted document without payload" }, "400": { "description": "Key 'id' is required." }, "404": { "description": "no such document" } }
      }
    },
    "/api/v1/documents/clear": {
      "post": { "summary": "Delete every document", "responses": { "200": { "description": "{items_deleted: N}" } } }
    },
    "/ping": { "get": { "summary": "Returns OK", "responses": { "200": { "description": "OK" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check with document count and next id", "responses": { "200": { "description": "ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
