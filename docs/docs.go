// Package docs registers the Swagger document for the control API. Regenerate
// with `swag init -g cmd/api/main.go` after changing handler annotations.
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
        "/listener/start": {
            "post": {
                "description": "Start the capture loop on the configured input device",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Listener"
                ],
                "summary": "Start listening",
                "responses": {
                    "202": {
                        "description": "Listener started",
                        "schema": {
                            "$ref": "#/definitions/handlers.StatusResponse"
                        }
                    },
                    "409": {
                        "description": "Listener already running",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/listener/status": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Listener"
                ],
                "summary": "Listener status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.StatusResponse"
                        }
                    }
                }
            }
        },
        "/listener/stop": {
            "post": {
                "description": "Stop the capture loop, discarding any utterance in progress",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Listener"
                ],
                "summary": "Stop listening",
                "responses": {
                    "200": {
                        "description": "Listener stopped",
                        "schema": {
                            "$ref": "#/definitions/handlers.StatusResponse"
                        }
                    },
                    "409": {
                        "description": "Listener not running",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/utterances": {
            "get": {
                "description": "Newest first",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Utterances"
                ],
                "summary": "List utterances",
                "parameters": [
                    {
                        "type": "integer",
                        "default": 20,
                        "description": "Maximum number of utterances",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.ListUtterancesResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid limit",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Utterances"
                ],
                "summary": "Clear utterance memory",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handlers.SuccessResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/handlers.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "details": {
                    "type": "string",
                    "example": "Validation error details"
                },
                "error": {
                    "type": "string",
                    "example": "Something went wrong"
                }
            }
        },
        "handlers.ListUtterancesResponse": {
            "type": "object",
            "properties": {
                "limit": {
                    "type": "integer",
                    "example": 20
                },
                "utterances": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/listener.Record"
                    }
                }
            }
        },
        "handlers.StatusResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "$ref": "#/definitions/listener.Status"
                }
            }
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string",
                    "example": "Operation completed successfully"
                }
            }
        },
        "listener.Record": {
            "type": "object",
            "properties": {
                "createdAt": {
                    "type": "string"
                },
                "duration": {
                    "type": "integer"
                },
                "id": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "rms": {
                    "type": "number"
                },
                "sessionId": {
                    "type": "string"
                },
                "transcript": {
                    "type": "string"
                }
            }
        },
        "listener.Status": {
            "type": "object",
            "properties": {
                "accepted": {
                    "type": "integer"
                },
                "last": {
                    "$ref": "#/definitions/listener.Record"
                },
                "lastError": {
                    "type": "string"
                },
                "rejected": {
                    "type": "integer"
                },
                "running": {
                    "type": "boolean"
                },
                "sessions": {
                    "type": "integer"
                },
                "startedAt": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Aria API",
	Description:      "Control API for the aria voice listener.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
