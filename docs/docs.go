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
        "/users/register": {
            "post": {
                "tags": ["users"],
                "summary": "Register a user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/api.RegisterUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["users"],
                "summary": "List users",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.UsersResponse"}}}
            }
        },
        "/users/{userId}": {
            "get": {
                "tags": ["users"],
                "summary": "Get a user by id",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "in": "path", "name": "userId", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.User"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["users"],
                "summary": "Delete a user",
                "description": "The user's trades stay in the ledger.",
                "parameters": [{"type": "integer", "in": "path", "name": "userId", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/users/username/{username}": {
            "get": {
                "tags": ["users"],
                "summary": "Get a user by username",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "in": "path", "name": "username", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.User"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/trading/buy": {
            "post": {
                "tags": ["trading"],
                "summary": "Buy stock",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/api.TradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.TradeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/trading/sell": {
            "post": {
                "tags": ["trading"],
                "summary": "Sell stock",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/api.TradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.TradeResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/trading/transactions/{userId}": {
            "get": {
                "tags": ["trading"],
                "summary": "Get transaction history",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "userId", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"type": "string"}}}}
            }
        },
        "/trading/portfolio/{userId}": {
            "get": {
                "tags": ["trading"],
                "summary": "Get user portfolio",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "userId", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.PortfolioResponse"}}}
            }
        },
        "/trading/feed": {
            "get": {
                "tags": ["trading"],
                "summary": "Get live trade feed",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/stocks/quote/{symbol}": {
            "get": {
                "tags": ["stocks"],
                "summary": "Get stock quote",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "symbol", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/stocks/all": {
            "get": {
                "tags": ["stocks"],
                "summary": "Get all stocks",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/stocks/history/{symbol}/{timeframe}": {
            "get": {
                "tags": ["stocks"],
                "summary": "Get stock history graph data",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "symbol", "required": true, "type": "string"},
                    {"in": "path", "name": "timeframe", "required": true, "type": "string", "enum": ["1D", "1W", "1M", "1Y"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HistoryResponse"}}}
            }
        }
    },
    "definitions": {
        "api.RegisterUserRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string", "example": "alice"}
            }
        },
        "api.UsersResponse": {
            "type": "object",
            "properties": {
                "users": {"type": "array", "items": {"$ref": "#/definitions/domain.User"}},
                "count": {"type": "integer"}
            }
        },
        "domain.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "api.TradeRequest": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer", "example": 1},
                "symbol": {"type": "string", "example": "TCS"},
                "quantity": {"type": "integer", "example": 10}
            }
        },
        "api.TradeResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "trade": {"type": "object"}
            }
        },
        "api.PortfolioResponse": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "positions": {"type": "array", "items": {"type": "object"}},
                "total_value": {"type": "string"},
                "count": {"type": "integer"}
            }
        },
        "api.HistoryResponse": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "timeframe": {"type": "string"},
                "history": {"type": "array", "items": {"type": "object"}},
                "count": {"type": "integer"}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "kind": {"type": "string"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Trading Backend API",
	Description:      "Paper trading engine: market orders, portfolios, quotes and price history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
