package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Behavior Incident API",
        "description": "Records and tracks student behaviour incidents through their OPEN, RESOLVED and CLOSED lifecycle.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Incidents",
            "description": "Behaviour incident records"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check (database and cache)",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is unreachable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/incidents": {
            "get": {
                "tags": [
                    "Incidents"
                ],
                "summary": "List incidents",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "studentId",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "type": "array",
                        "description": "Status filter",
                        "items": {
                            "type": "string",
                            "enum": [
                                "OPEN",
                                "RESOLVED",
                                "CLOSED"
                            ]
                        },
                        "collectionFormat": "multi"
                    },
                    {
                        "name": "severityLevel",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Severity",
                        "enum": [
                            "LEVE",
                            "MODERADO",
                            "GRAVE"
                        ]
                    },
                    {
                        "name": "incidentType",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Incident type",
                        "enum": [
                            "ACCIDENTE",
                            "CONFLICTO",
                            "COMPORTAMIENTO",
                            "EMOCIONAL",
                            "SALUD"
                        ]
                    },
                    {
                        "name": "academicYear",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Academic year"
                    },
                    {
                        "name": "dateFrom",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Earliest incident date (YYYY-MM-DD)"
                    },
                    {
                        "name": "dateTo",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Latest incident date (YYYY-MM-DD)"
                    },
                    {
                        "name": "followUp",
                        "in": "query",
                        "required": false,
                        "type": "boolean",
                        "description": "Only incidents requiring follow-up"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page"
                    },
                    {
                        "name": "pageSize",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Page size"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid filter",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Record incident",
                "description": "GRAVE incidents must be sent with confirmed=true.",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateIncidentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Field errors",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Confirmation required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/incidents/validate": {
            "post": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Dry-run validation of a new incident",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/IncidentForm"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/incidents/export": {
            "get": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Export incidents",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Export format",
                        "enum": [
                            "csv",
                            "pdf"
                        ],
                        "default": "csv"
                    },
                    {
                        "name": "studentId",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Student ID"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "type": "array",
                        "description": "Status filter",
                        "items": {
                            "type": "string",
                            "enum": [
                                "OPEN",
                                "RESOLVED",
                                "CLOSED"
                            ]
                        },
                        "collectionFormat": "multi"
                    },
                    {
                        "name": "severityLevel",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Severity",
                        "enum": [
                            "LEVE",
                            "MODERADO",
                            "GRAVE"
                        ]
                    },
                    {
                        "name": "incidentType",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Incident type",
                        "enum": [
                            "ACCIDENTE",
                            "CONFLICTO",
                            "COMPORTAMIENTO",
                            "EMOCIONAL",
                            "SALUD"
                        ]
                    },
                    {
                        "name": "academicYear",
                        "in": "query",
                        "required": false,
                        "type": "integer",
                        "description": "Academic year"
                    },
                    {
                        "name": "dateFrom",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Earliest incident date (YYYY-MM-DD)"
                    },
                    {
                        "name": "dateTo",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Latest incident date (YYYY-MM-DD)"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File download",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "Invalid filter or format",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/incidents/{id}": {
            "get": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Get incident",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Edit incident or change its status",
                "description": "Only mutable fields may change. Closing requires ADMIN or SUPERADMIN. Status changes on GRAVE incidents need confirmed=true.",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateIncidentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Field errors",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Role may not close incidents",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Illegal transition, immutable field or concurrent edit",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "Confirmation required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/incidents/{id}/validate": {
            "post": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Dry-run validation of an incident edit",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/IncidentForm"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/students/{id}/incidents/summary": {
            "get": {
                "tags": [
                    "Incidents"
                ],
                "summary": "Incident counts for a student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Student not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "IncidentForm": {
            "type": "object",
            "properties": {
                "studentId": {
                    "type": "string"
                },
                "studentName": {
                    "type": "string"
                },
                "incidentDate": {
                    "type": "string",
                    "example": "2024-03-05",
                    "description": "YYYY-MM-DD or [year, month, day]"
                },
                "incidentTime": {
                    "type": "string",
                    "example": "10:30",
                    "description": "HH:MM[:SS] or [hour, minute]"
                },
                "academicYear": {
                    "type": "string",
                    "example": "2024"
                },
                "incidentType": {
                    "type": "string",
                    "enum": [
                        "ACCIDENTE",
                        "CONFLICTO",
                        "COMPORTAMIENTO",
                        "EMOCIONAL",
                        "SALUD"
                    ]
                },
                "severityLevel": {
                    "type": "string",
                    "enum": [
                        "LEVE",
                        "MODERADO",
                        "GRAVE"
                    ]
                },
                "description": {
                    "type": "string"
                },
                "location": {
                    "type": "string"
                },
                "witnesses": {
                    "type": "string"
                },
                "immediateAction": {
                    "type": "string"
                },
                "otherStudentsInvolved": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "followUpRequired": {
                    "type": "boolean"
                },
                "followUpFrequency": {
                    "type": "string",
                    "enum": [
                        "DIARIO",
                        "SEMANAL",
                        "QUINCENAL",
                        "MENSUAL"
                    ]
                },
                "parentsNotified": {
                    "type": "boolean"
                },
                "notificationDate": {
                    "type": "string",
                    "format": "date-time"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "OPEN",
                        "RESOLVED",
                        "CLOSED"
                    ]
                },
                "resolvedBy": {
                    "type": "string"
                },
                "reportedBy": {
                    "type": "string"
                }
            }
        },
        "CreateIncidentRequest": {
            "allOf": [
                {
                    "$ref": "#/definitions/IncidentForm"
                },
                {
                    "type": "object",
                    "properties": {
                        "confirmed": {
                            "type": "boolean"
                        }
                    }
                }
            ]
        },
        "UpdateIncidentRequest": {
            "allOf": [
                {
                    "$ref": "#/definitions/IncidentForm"
                },
                {
                    "type": "object",
                    "properties": {
                        "confirmed": {
                            "type": "boolean"
                        }
                    }
                }
            ]
        },
        "ValidationReport": {
            "type": "object",
            "properties": {
                "valid": {
                    "type": "boolean"
                },
                "fieldErrors": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                },
                "transitionError": {
                    "type": "string"
                },
                "immutableFields": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "confirmationRequired": {
                    "type": "boolean"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "pageSize": {
                    "type": "integer"
                },
                "totalCount": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "details": {
                    "type": "object"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
