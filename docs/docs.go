// Package docs registers the Swagger document served at /swagger.
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
        "/api/v1/categories": {
            "get": {
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "List categories",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Category"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Create a video",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.CreateVideoResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Get a public video",
                "parameters": [{"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Video"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Update a video",
                "parameters": [
                    {"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.UpdateVideoRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Video"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Delete a video",
                "parameters": [{"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Video"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos/{id}/thumbnail": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Upload a custom thumbnail",
                "parameters": [
                    {"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true},
                    {"type": "file", "description": "Image file", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Video"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos/{id}/thumbnail/restore": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Restore the default thumbnail",
                "parameters": [{"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Video"}},
                    "400": {"description": "Video is not processed yet", "schema": {"$ref": "#/definitions/error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos/{id}/thumbnail/generate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Generate a thumbnail",
                "parameters": [
                    {"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true},
                    {"description": "Image prompt, at least 10 characters", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.GenerateThumbnailRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/models.TriggerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos/{id}/title/generate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Generate a title",
                "parameters": [{"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/models.TriggerResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/videos/{id}/description/generate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["videos"],
                "summary": "Generate a description",
                "parameters": [{"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/models.TriggerResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/studio/videos": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["studio"],
                "summary": "List the caller's videos",
                "parameters": [
                    {"type": "integer", "description": "Page size (1-100, default 5)", "name": "limit", "in": "query"},
                    {"type": "string", "description": "ID of the last item of the previous page", "name": "cursorId", "in": "query"},
                    {"type": "string", "description": "updatedAt of the last item of the previous page (RFC3339)", "name": "cursorUpdatedAt", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.VideoPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/studio/videos/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["studio"],
                "summary": "Get one of the caller's videos",
                "parameters": [{"type": "string", "description": "Video ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Video"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/studio/runs/{runId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["studio"],
                "summary": "Get a generation run",
                "parameters": [{"type": "string", "description": "Workflow run ID", "name": "runId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.GenerationRun"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        },
        "/api/v1/webhooks/mux": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive a video provider callback",
                "parameters": [{"type": "string", "description": "t=<unix>,v1=<hex hmac>", "name": "Mux-Signature", "in": "header"}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/error"}}
                }
            }
        }
    },
    "definitions": {
        "error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "models.Category": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "models.Video": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "userId": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "categoryId": {"type": "string"},
                "visibility": {"type": "string", "enum": ["public", "private"]},
                "muxStatus": {"type": "string"},
                "muxUploadId": {"type": "string"},
                "muxAssetId": {"type": "string"},
                "muxPlaybackId": {"type": "string"},
                "muxTrackId": {"type": "string"},
                "muxTrackStatus": {"type": "string"},
                "thumbnailUrl": {"type": "string"},
                "thumbnailKey": {"type": "string"},
                "duration": {"type": "integer"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.CreateVideoResponse": {
            "type": "object",
            "properties": {
                "video": {"$ref": "#/definitions/models.Video"},
                "url": {"type": "string"}
            }
        },
        "models.UpdateVideoRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "categoryId": {"type": "string"},
                "visibility": {"type": "string", "enum": ["public", "private"]}
            }
        },
        "models.GenerateThumbnailRequest": {
            "type": "object",
            "properties": {"prompt": {"type": "string"}}
        },
        "models.TriggerResponse": {
            "type": "object",
            "properties": {"workflowRunId": {"type": "string"}}
        },
        "models.StudioCursor": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.VideoPage": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/models.Video"}},
                "nextCursor": {"$ref": "#/definitions/models.StudioCursor"}
            }
        },
        "models.GenerationRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "workflow": {"type": "string", "enum": ["title", "description", "thumbnail"]},
                "videoId": {"type": "string"},
                "userId": {"type": "string"},
                "status": {"type": "string", "enum": ["queued", "completed", "failed"]},
                "error": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"},
        "BearerAuth": {"description": "\"Bearer <access token>\"", "type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Flicket API",
	Description:      "Video platform backend: uploads, studio metadata and AI generation workflows",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
