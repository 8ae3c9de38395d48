// Package docs registers the OpenAPI document served under /swagger.
package docs

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
        "/apis": {
            "get": {
                "produces": ["application/json"],
                "summary": "List monitored APIs",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.API"}}}}
            }
        },
        "/apis/{id}/endpoints": {
            "get": {
                "produces": ["application/json"],
                "summary": "List endpoints of an API",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Endpoint"}}},
                    "404": {"description": "API not found"}
                }
            }
        },
        "/endpoints/{id}/probes": {
            "get": {
                "produces": ["application/json"],
                "summary": "Recent probes of an endpoint, newest first",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "limit", "in": "query", "default": 50}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Probe"}}},
                    "404": {"description": "Endpoint not found"}
                }
            }
        },
        "/endpoints/{id}/baseline": {
            "get": {
                "produces": ["application/json"],
                "summary": "Baseline lifecycle state of an endpoint",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Endpoint not found"}}
            },
            "delete": {
                "produces": ["application/json"],
                "summary": "Reset the baseline so it is re-established by later runs",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Endpoint not found"}}
            }
        },
        "/runs": {
            "post": {
                "produces": ["application/json"],
                "summary": "Execute a run now and return its result",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/runs/last": {
            "get": {
                "produces": ["application/json"],
                "summary": "Result of the most recent run",
                "responses": {"200": {"description": "OK"}, "404": {"description": "No run yet"}}
            }
        }
    },
    "definitions": {
        "models.API": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "base_url": {"type": "string"}
            }
        },
        "models.Endpoint": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "api_id": {"type": "integer"},
                "path": {"type": "string"},
                "method": {"type": "string"},
                "expected_status": {"type": "integer"},
                "expected_fields": {"type": "array", "items": {"type": "string"}},
                "param_keys": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.Probe": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "api_id": {"type": "integer"},
                "endpoint_id": {"type": "integer"},
                "run_id": {"type": "string"},
                "passed": {"type": "boolean"},
                "status_code": {"type": "integer"},
                "content_type": {"type": "string"},
                "latency": {"type": "string", "enum": ["fast", "slow", "timeout", "error"]},
                "latency_ms": {"type": "integer"},
                "error_message": {"type": "string"},
                "created_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "DriftWatch API",
	Description:      "API contract drift monitoring: probes, baselines and runs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
