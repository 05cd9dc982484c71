// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
        "/health": {
            "get": {
                "description": "Pings the report store and Redis and reports pool and breaker state",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/jobs": {
            "get": {
                "description": "Lists registered jobs and the next scheduled run of each",
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "List jobs",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/maintenance/retention": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Report retention policy",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/v1/reports/{collection}/history": {
            "get": {
                "description": "Lists history document ids of a collection, newest first",
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "Report history",
                "parameters": [
                    {"type": "string", "description": "Collection", "name": "collection", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/v1/reports/{collection}/{doc}": {
            "get": {
                "description": "Returns the latest report or a history document of a collection",
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "Get report",
                "parameters": [
                    {"type": "string", "description": "Collection (data_quality or fairness_metrics)", "name": "collection", "in": "path", "required": true},
                    {"type": "string", "description": "Document id: latest, YYYY-MM-DD or RFC3339 timestamp", "name": "doc", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/v1/trigger/quality": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Runs the quality job synchronously",
                "produces": ["application/json"],
                "tags": ["Triggers"],
                "summary": "Run a report now",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/v1/trigger/fairness": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Runs the fairness job synchronously",
                "produces": ["application/json"],
                "tags": ["Triggers"],
                "summary": "Run a report now",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/v1/trigger/maintenance/{job}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Triggers"],
                "summary": "Run a maintenance job now",
                "parameters": [
                    {"type": "string", "description": "unsuspend, unban, catalog-sync, announcements or retention", "name": "job", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        }
    },
    "definitions": {
        "errors.AppError": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "http_status": {"type": "integer"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "FairPlate Analytics API",
	Description:      "Data quality and recommendation fairness reports for the FairPlate marketplace, plus manual job triggers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
