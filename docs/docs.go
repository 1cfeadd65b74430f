// Package docs registers the OpenAPI document of the SITRAS API with swag.
// Regenerate with: swag init -g cmd/main.go
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
            "get": {"tags": ["health"], "summary": "Liveness probe", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/metrics": {
            "get": {"tags": ["health"], "summary": "Event counters since startup", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/data/raw": {
            "get": {"tags": ["raw"], "summary": "Latest raw reading", "responses": {"200": {"description": "OK"}, "404": {"description": "No raw data found"}}},
            "post": {
                "tags": ["raw"],
                "summary": "Ingest a raw reading",
                "description": "Stores a raw sensor reading and attempts calibration. Calibration failures do not fail the request.",
                "consumes": ["application/json"],
                "parameters": [{"in": "body", "name": "reading", "required": true, "schema": {"$ref": "#/definitions/models.VariablesInput"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}
            },
            "delete": {"tags": ["raw"], "summary": "Delete all raw readings", "responses": {"200": {"description": "OK"}}}
        },
        "/data/raw/history": {
            "get": {"tags": ["raw"], "summary": "Raw reading history", "parameters": [{"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/data/raw/{id}": {
            "get": {"tags": ["raw"], "summary": "Get a raw reading", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Raw data not found"}}},
            "delete": {"tags": ["raw"], "summary": "Delete a raw reading", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Raw data not found"}}}
        },
        "/data/calibrated": {
            "get": {"tags": ["calibrated"], "summary": "Latest calibrated reading", "responses": {"200": {"description": "OK"}, "404": {"description": "No calibrated data found"}}},
            "post": {
                "tags": ["calibrated"],
                "summary": "Save a calibrated reading",
                "consumes": ["application/json"],
                "parameters": [{"in": "body", "name": "reading", "required": true, "schema": {"$ref": "#/definitions/models.VariablesInput"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}
            },
            "delete": {"tags": ["calibrated"], "summary": "Delete all calibrated readings", "responses": {"200": {"description": "OK"}}}
        },
        "/data/calibrated/history": {
            "get": {"tags": ["calibrated"], "summary": "Calibrated reading history", "parameters": [{"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/data/calibrated/{id}": {
            "get": {"tags": ["calibrated"], "summary": "Get a calibrated reading", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Calibrated data not found"}}},
            "delete": {"tags": ["calibrated"], "summary": "Delete a calibrated reading", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Calibrated data not found"}}}
        },
        "/latest/calibrated": {
            "get": {"tags": ["calibrated"], "summary": "Latest nutrients", "responses": {"200": {"description": "OK"}, "404": {"description": "No calibrated data found"}}}
        },
        "/recommendation": {
            "post": {
                "tags": ["recommendation"],
                "summary": "Generate a recommendation",
                "consumes": ["application/json"],
                "parameters": [{"in": "body", "name": "input", "required": true, "schema": {"$ref": "#/definitions/models.RecommendationInput"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Error generating ML recommendation"}}
            },
            "delete": {"tags": ["recommendation"], "summary": "Delete all recommendations", "responses": {"200": {"description": "OK"}}}
        },
        "/recommendation/input": {
            "post": {
                "tags": ["recommendation"],
                "summary": "Preview a recommendation",
                "consumes": ["application/json"],
                "parameters": [{"in": "body", "name": "input", "required": true, "schema": {"$ref": "#/definitions/models.RecommendationInput"}}],
                "responses": {"200": {"description": "Recommendation service response"}, "400": {"description": "Error generating ML recommendation"}}
            }
        },
        "/recommendation/ml": {
            "post": {"tags": ["recommendation"], "summary": "Save a precomputed recommendation", "consumes": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Input data is missing or incomplete."}}}
        },
        "/recommendation/history": {
            "get": {"tags": ["recommendation"], "summary": "Recommendation history", "parameters": [{"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/recommendation/{id}": {
            "delete": {"tags": ["recommendation"], "summary": "Delete a recommendation", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Recommendation not found"}}}
        },
        "/data/manual": {
            "get": {"tags": ["manual"], "summary": "Latest extracted values", "responses": {"200": {"description": "OK"}, "404": {"description": "No manual data found with extracted values"}}},
            "post": {"tags": ["manual"], "summary": "Save a manual submission", "consumes": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Error saving manual data"}}},
            "delete": {"tags": ["manual"], "summary": "Delete all manual submissions", "responses": {"200": {"description": "OK"}}}
        },
        "/data/manual/history": {
            "get": {"tags": ["manual"], "summary": "Manual submission history", "parameters": [{"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/data/manual/{id}": {
            "delete": {"tags": ["manual"], "summary": "Delete a manual submission", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Manual data not found"}}}
        },
        "/data/manual/{id}/file": {
            "get": {"tags": ["manual"], "summary": "Download an attachment", "produces": ["application/octet-stream"], "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Attachment not found"}}}
        }
    },
    "definitions": {
        "models.VariablesInput": {
            "type": "object",
            "required": ["pH", "suhu", "kelembaban", "N", "P", "K", "EC"],
            "properties": {
                "pH": {"type": "number", "minimum": 0, "maximum": 14},
                "suhu": {"type": "number", "minimum": 0, "maximum": 100},
                "kelembaban": {"type": "number", "minimum": 0, "maximum": 100},
                "N": {"type": "number", "minimum": 0, "maximum": 1000},
                "P": {"type": "number", "minimum": 0, "maximum": 1000},
                "K": {"type": "number", "minimum": 0, "maximum": 1000},
                "EC": {"type": "number", "minimum": 0, "maximum": 2000}
            }
        },
        "models.RecommendationInput": {
            "type": "object",
            "required": ["P", "N", "K"],
            "properties": {
                "P": {"type": "number"},
                "N": {"type": "number"},
                "K": {"type": "number"},
                "jenis_tanaman": {"type": "string", "default": "Padi"},
                "target_padi": {"type": "string", "enum": ["<6", "6-8", ">8", "N/A"]}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "SITRAS API",
	Description:      "Soil sensor ingestion, calibration and fertilizer recommendation service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
