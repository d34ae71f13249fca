// Package docs holds the OpenAPI document served at /docs/doc.json. It is
// maintained by hand in the layout swag generates
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.0.3",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "paths": {
        "/healthz": {
            "get": {"tags": ["Meta"], "summary": "Liveness and build info", "responses": {"200": {"description": "ok"}}}
        },
        "/readyz": {
            "get": {"tags": ["Meta"], "summary": "Readiness of Postgres and ClickHouse", "responses": {"200": {"description": "ok"}, "503": {"description": "a backend is down"}}}
        },
        "/v1/inbound/email": {
            "post": {
                "tags": ["Inbound"],
                "summary": "Store one inbound email; repeated message ids are accepted",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/InboundEmail"}}}},
                "responses": {"202": {"description": "stored"}, "200": {"description": "already stored"}, "422": {"description": "validation failed"}}
            }
        },
        "/v1/classify/sender": {
            "post": {
                "tags": ["Inbound"],
                "summary": "Run the sender classifier on a From value",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"type": "object", "required": ["from"], "properties": {"from": {"type": "string", "example": "Press Office <press@city.gov>"}}}}}},
                "responses": {"200": {"description": "verdict"}}
            }
        },
        "/v1/dispatch/collection": {
            "post": {"tags": ["Dispatch"], "summary": "Run the collection dispatcher once", "responses": {"200": {"description": "counts per method type"}}}
        },
        "/v1/dispatch/processing": {
            "post": {"tags": ["Dispatch"], "summary": "Run the processing dispatcher once", "responses": {"200": {"description": "counts per queue"}}}
        },
        "/v1/methods": {
            "get": {
                "tags": ["Methods"],
                "summary": "List collection methods",
                "parameters": [
                    {"name": "type", "in": "query", "schema": {"type": "string", "enum": ["rss", "scrape", "email"]}},
                    {"name": "enabled", "in": "query", "schema": {"type": "boolean"}}
                ],
                "responses": {"200": {"description": "methods"}}
            },
            "post": {
                "tags": ["Methods"],
                "summary": "Create a collection method",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/MethodInput"}}}},
                "responses": {"201": {"description": "created"}, "422": {"description": "validation failed"}}
            }
        },
        "/v1/methods/{id}/scan": {
            "post": {
                "tags": ["Methods"],
                "summary": "Queue an immediate scan of a method",
                "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}],
                "responses": {"202": {"description": "queued"}, "404": {"description": "unknown method"}}
            }
        },
        "/v1/methods/{id}/runs": {
            "get": {
                "tags": ["Methods"],
                "summary": "Recent scan runs of a method",
                "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}],
                "responses": {"200": {"description": "runs, newest first"}}
            }
        },
        "/v1/signals/{id}": {
            "get": {
                "tags": ["Signals"],
                "summary": "Load one content record",
                "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}],
                "responses": {"200": {"description": "record"}, "404": {"description": "not found"}}
            }
        },
        "/v1/queues": {
            "get": {"tags": ["Queues"], "summary": "Ready, leased and dead tasks per queue", "responses": {"200": {"description": "depths"}}}
        }
    },
    "components": {
        "schemas": {
            "InboundEmail": {
                "type": "object",
                "required": ["message_id", "from"],
                "properties": {
                    "message_id": {"type": "string", "example": "<20260301.1234@city.gov>"},
                    "from": {"type": "string", "example": "City Hall <press@city.gov>"},
                    "subject": {"type": "string"},
                    "text": {"type": "string"},
                    "html": {"type": "string"},
                    "received_at": {"type": "string", "format": "date-time"}
                }
            },
            "MethodInput": {
                "type": "object",
                "required": ["method_type", "name"],
                "properties": {
                    "method_type": {"type": "string", "enum": ["rss", "scrape", "email"]},
                    "name": {"type": "string"},
                    "source_name": {"type": "string"},
                    "config": {"type": "object"},
                    "priority": {"type": "string", "enum": ["breaking", "high", "normal", "low"]},
                    "breaking": {"type": "boolean"},
                    "frequency": {"type": "string", "example": "15m"},
                    "disabled": {"type": "boolean"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Title:            "Newsroom API",
	Description:      "Ingestion pipeline operations: inbound mail, collection methods, dispatch triggers",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
