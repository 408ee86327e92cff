// Package swagger registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o docs/swagger
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AgriTrack Support"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/batches": {
            "get": {
                "description": "Lists the batches created by a producer, newest first",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "List batches",
                "parameters": [
                    {"type": "string", "description": "Producer name", "name": "producer", "in": "query", "required": true},
                    {"type": "integer", "description": "Page size (default 20, max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Records to skip", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ListBatchesResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "post": {
                "description": "Mints an identifier and records the producer stage of a new batch",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Create batch",
                "parameters": [
                    {"description": "Producer intake", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/BatchView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/batches/{payload}": {
            "get": {
                "description": "Decodes a payload (or bare identifier) and returns the batch journey with its verification summary",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Resolve batch",
                "parameters": [
                    {"type": "string", "example": "AGT1-BTC01ARZ3NDEKTSV4RRFFQ69G5FAV-Z", "description": "Encoded identifier", "name": "payload", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BatchView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/batches/{payload}/qr": {
            "get": {
                "description": "Renders the verify URL of an existing batch as a PNG QR code",
                "produces": ["image/png"],
                "tags": ["batches"],
                "summary": "Batch QR code",
                "parameters": [
                    {"type": "string", "description": "Encoded identifier", "name": "payload", "in": "path", "required": true},
                    {"type": "integer", "description": "Image size in pixels (64-1024, default 256)", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/batches/{payload}/seller": {
            "post": {
                "description": "Appends a seller stage; moves the batch to AT_SELLER, or to SOLD when sold is true",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Record seller stage",
                "parameters": [
                    {"type": "string", "description": "Encoded identifier", "name": "payload", "in": "path", "required": true},
                    {"description": "Seller stage", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SellerStageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BatchView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/batches/{payload}/transport": {
            "post": {
                "description": "Appends a transporter stage; moves the batch to IN_TRANSIT",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Record transport",
                "parameters": [
                    {"type": "string", "description": "Encoded identifier", "name": "payload", "in": "path", "required": true},
                    {"description": "Transport leg", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransportStageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BatchView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "BatchView": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "BTC01ARZ3NDEKTSV4RRFFQ69G5FAV"},
                "payload": {"type": "string", "example": "AGT1-BTC01ARZ3NDEKTSV4RRFFQ69G5FAV-Z"},
                "verify_url": {"type": "string"},
                "producer": {"$ref": "#/definitions/Producer"},
                "product": {"$ref": "#/definitions/Product"},
                "created_at": {"type": "string", "example": "2024-03-20T08:00:00Z"},
                "current_state": {"type": "string", "enum": ["CREATED", "IN_TRANSIT", "AT_SELLER", "SOLD"]},
                "stages": {"type": "array", "items": {"$ref": "#/definitions/Stage"}},
                "verification": {"$ref": "#/definitions/Verification"}
            }
        },
        "CreateBatchRequest": {
            "type": "object",
            "required": ["producer_name", "product_type", "unit"],
            "properties": {
                "producer_name": {"type": "string", "maxLength": 255, "example": "Green Valley Farm"},
                "producer_location": {"type": "string", "maxLength": 255, "example": "Punjab, India"},
                "product_type": {"type": "string", "maxLength": 255, "example": "Tomatoes"},
                "quantity": {"type": "string", "example": "50"},
                "unit": {"type": "string", "enum": ["kg", "tons", "bags"]},
                "recorded_at": {"type": "string"},
                "location": {"type": "string"},
                "planted_on": {"type": "string"},
                "harvested_on": {"type": "string"},
                "notes": {"type": "string", "maxLength": 2000},
                "photo_ref": {"type": "string"},
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid stage transition: batch is SOLD"}
            }
        },
        "ListBatchesResponse": {
            "type": "object",
            "properties": {
                "batches": {"type": "array", "items": {"$ref": "#/definitions/BatchView"}},
                "total": {"type": "integer", "example": 42},
                "limit": {"type": "integer", "example": 20},
                "offset": {"type": "integer", "example": 0}
            }
        },
        "Producer": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "location": {"type": "string"}
            }
        },
        "Product": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "quantity": {"type": "string"},
                "unit": {"type": "string", "enum": ["kg", "tons", "bags"]}
            }
        },
        "SellerStageRequest": {
            "type": "object",
            "required": ["actor"],
            "properties": {
                "actor": {"type": "string"},
                "occurred_at": {"type": "string"},
                "location": {"type": "string"},
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}},
                "notes": {"type": "string"},
                "price": {"type": "string", "example": "2.50"},
                "currency": {"type": "string", "example": "USD"},
                "discount_pct": {"type": "string"},
                "best_before": {"type": "string"},
                "sold": {"type": "boolean"}
            }
        },
        "Stage": {
            "type": "object",
            "properties": {
                "seq": {"type": "integer"},
                "role": {"type": "string", "enum": ["PRODUCER", "TRANSPORTER", "SELLER"]},
                "actor": {"type": "string"},
                "occurred_at": {"type": "string"},
                "location": {"type": "string"},
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}},
                "details": {"type": "object"},
                "digest": {"type": "string"}
            }
        },
        "TransportStageRequest": {
            "type": "object",
            "required": ["actor"],
            "properties": {
                "actor": {"type": "string"},
                "occurred_at": {"type": "string"},
                "location": {"type": "string"},
                "attributes": {"type": "object", "additionalProperties": {"type": "string"}},
                "notes": {"type": "string"},
                "temperature_c": {"type": "string", "example": "12.5"},
                "humidity_pct": {"type": "string", "example": "65"},
                "expected_delivery": {"type": "string"},
                "delivered": {"type": "boolean"}
            }
        },
        "Verification": {
            "type": "object",
            "properties": {
                "verified": {"type": "boolean"},
                "token": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "AgriTrack API",
	Description:      "Produce batch traceability: batch intake, custody stages and consumer resolution.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
