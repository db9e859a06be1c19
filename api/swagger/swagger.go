package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ClassTrack API",
        "description": "Classroom accountability and grading API",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "User administration"},
        {"name": "Classes", "description": "Class lifecycle and enrollment"},
        {"name": "Activities", "description": "Graded activity management"},
        {"name": "Submissions", "description": "Score submission and review"},
        {"name": "Grading", "description": "Standings and grading schemes"},
        {"name": "Attendance", "description": "Attendance sessions and records"},
        {"name": "Analytics", "description": "Class and system analytics"},
        {"name": "Exports", "description": "Async report generation"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new access token",
                "responses": {
                    "200": {"description": "Tokens rotated"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current authenticated user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User profile"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated users", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create a user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "User created"},
                    "409": {"description": "Email already exists"}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated classes"}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create a class",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Class created"}
                }
            }
        },
        "/classes/{classId}/standings": {
            "get": {
                "tags": ["Grading"],
                "summary": "Computed standings for every enrolled student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Class standings"}
                }
            }
        },
        "/classes/{classId}/scheme": {
            "get": {
                "tags": ["Grading"],
                "summary": "Grading scheme for a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Scheme with transmutation rules"}
                }
            },
            "put": {
                "tags": ["Grading"],
                "summary": "Replace the grading scheme for a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Scheme stored"},
                    "422": {"description": "Weights do not sum to 100"}
                }
            }
        },
        "/activities": {
            "get": {
                "tags": ["Activities"],
                "summary": "List activities",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated activities"}
                }
            },
            "post": {
                "tags": ["Activities"],
                "summary": "Create an activity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Activity created"}
                }
            }
        },
        "/submissions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List submissions",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated submissions"}
                }
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit a score for review",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Submission recorded"},
                    "422": {"description": "Score outside activity range"}
                }
            }
        },
        "/submissions/{id}/review": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Approve, decline, or return a submission",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Review recorded"}
                }
            }
        },
        "/attendance/sessions": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance sessions",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Sessions"}
                }
            },
            "post": {
                "tags": ["Attendance"],
                "summary": "Open an attendance session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Session created"}
                }
            }
        },
        "/classes/{classId}/analytics/at-risk": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Students flagged as at risk",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Flagged students with reasons"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a report generation job",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Job queued"}
                }
            },
            "get": {
                "tags": ["Exports"],
                "summary": "List the caller's export jobs",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Jobs"}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished report with a signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "410": {"description": "Link expired"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
