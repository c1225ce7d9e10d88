// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Dependency health",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/upload": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["receipts"],
                "summary": "Extract a receipt from an image or PDF",
                "parameters": [
                    {"type": "file", "description": "Receipt image (png, jpg, jpeg) or PDF", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Provider tried first: GEMINI or GIGACHAT", "name": "defaultModel", "in": "formData", "required": true},
                    {"type": "string", "description": "Gemini API key or UNSET", "name": "geminiKey", "in": "formData"},
                    {"type": "string", "description": "GigaChat authorization key or UNSET", "name": "gigachatKey", "in": "formData"},
                    {"type": "string", "description": "Store the receipt for this user", "name": "userId", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ReceiptResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/review": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["receipts"],
                "summary": "Spending insights for a list of receipts",
                "parameters": [
                    {"description": "Receipts and provider keys", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/chat": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Ask a question about your receipts",
                "parameters": [
                    {"description": "Message, history and provider keys", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ChatResponse"}}
                }
            }
        },
        "/embed-receipt": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["embeddings"],
                "summary": "Index a stored receipt for retrieval",
                "parameters": [
                    {"description": "Receipt to index", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.EmbedReceiptRequest"}}
                ],
                "responses": {
                    "200": {"description": "No chunks to embed", "schema": {"$ref": "#/definitions/dto.MessageResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.MessageResponse"}},
                    "207": {"description": "Partially embedded", "schema": {"$ref": "#/definitions/dto.MessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/delete-embeddings/{receiptId}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["embeddings"],
                "summary": "Remove every indexed chunk of a receipt",
                "parameters": [
                    {"type": "string", "description": "Receipt ID", "name": "receiptId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.DeleteEmbeddingsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIKeys": {
            "type": "object",
            "properties": {
                "defaultModel": {"type": "string", "example": "GEMINI"},
                "geminiKey": {"type": "string"},
                "gigachatKey": {"type": "string"}
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "dto.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "warning": {"type": "string"}}
        },
        "dto.ItemResponse": {
            "type": "object",
            "properties": {
                "item_name": {"type": "string"},
                "item_cost": {"type": "string"},
                "item_quantity": {"type": "integer"}
            }
        },
        "dto.ReceiptResponse": {
            "type": "object",
            "properties": {
                "merchant_name": {"type": "string", "example": "FairPrice"},
                "date": {"type": "string", "example": "15/01/2024"},
                "total_cost": {"type": "string", "example": "12.50"},
                "category": {"type": "string", "example": "Food"},
                "itemized_list": {"type": "array", "items": {"$ref": "#/definitions/dto.ItemResponse"}},
                "receipt_id": {"type": "string"}
            }
        },
        "dto.ReviewRequest": {
            "type": "object",
            "properties": {
                "apiKeys": {"$ref": "#/definitions/dto.APIKeys"},
                "receipts": {"type": "array", "items": {"type": "object"}},
                "query": {"type": "string"}
            }
        },
        "dto.ChatRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "message": {"type": "string"},
                "history": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {"sender": {"type": "string"}, "content": {"type": "string"}}
                    }
                },
                "apiKeys": {"$ref": "#/definitions/dto.APIKeys"}
            }
        },
        "dto.ChatResponse": {
            "type": "object",
            "properties": {"response": {"type": "string"}}
        },
        "dto.EmbedReceiptRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "receiptId": {"type": "string"},
                "receiptData": {"type": "object"}
            }
        },
        "dto.DeleteEmbeddingsResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "deleted": {"type": "integer"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8081",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Receipt Service API",
	Description:      "Receipt extraction, spending review and receipt-grounded chat",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
