// Package docs registers the generated OpenAPI document with swag.
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
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new account",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Authenticate and obtain a bearer token",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "Get the authenticated account",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "List the account's loans",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "Submit a loan application",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/loans/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "Get a loan",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans/{id}/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "Get a loan's status history",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans/{id}/schedule": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "Get a loan's repayment schedule",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans/{id}/payments": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "List a loan's payments",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans/{id}/disbursement": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "Get a loan's disbursement record",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/loans/{id}/repay": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["loans"],
                "summary": "Repay against an active loan",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/payments": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["payments"],
                "summary": "List the account's payments",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/payments/manual": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["payments"],
                "summary": "Submit manual transfer proof",
                "parameters": [{"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/payments/manual-with-receipt": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["payments"],
                "summary": "Submit manual transfer proof with a receipt image",
                "parameters": [{"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "List the account's notifications",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/unread-count": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Count unread notifications",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/{id}/read": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Mark a notification read",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications/read-all": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Mark all notifications read",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/credit/report": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["credit"],
                "summary": "Get the account's last credit report",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/credit/check": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["credit"],
                "summary": "Run an advisory credit check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/loans/{id}/review": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Move a pending application into review",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/loans/{id}/approve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Approve an application, optionally at a reduced amount",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/loans/{id}/reject": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Reject an application with a reason",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/loans/{id}/disburse": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Disburse an approved loan",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/loans/{id}/default": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Mark an active loan defaulted",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/payments/{id}/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Verify or reject a manual-proof payment",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/payments/{id}/refund": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Refund a successful payment in full",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/payments/{id}/refund-overpayment": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Refund a payment's overpayment slice",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Kredia Loan Engine API",
	Description:      "Loan lifecycle and repayment engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
