package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Apprenticeship Hours API",
        "description": "Apprenticeship hour tracking, transfer credit evaluation and licensure exam eligibility",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
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
            "name": "Rules",
            "description": "Jurisdiction licensure rules"
        },
        {
            "name": "Transfers",
            "description": "Transfer credit claims"
        },
        {
            "name": "Eligibility",
            "description": "Exam eligibility"
        },
        {
            "name": "Enrollments",
            "description": "Enrollments and partner sites"
        },
        {
            "name": "Progress",
            "description": "Progress summaries"
        },
        {
            "name": "Hours",
            "description": "Hour entries"
        },
        {
            "name": "Timeclock",
            "description": "Geofenced timeclock"
        },
        {
            "name": "Reports",
            "description": "Progress report exports"
        },
        {
            "name": "Ops",
            "description": "Health and readiness"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": [
                    "Ops"
                ],
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
                "tags": [
                    "Ops"
                ],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is unavailable"
                    }
                }
            }
        },
        "/api/v1/rules": {
            "get": {
                "tags": [
                    "Rules"
                ],
                "summary": "List jurisdiction rule sets",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/rules/{code}": {
            "get": {
                "tags": [
                    "Rules"
                ],
                "summary": "Get jurisdiction rules with fingerprint and history",
                "parameters": [
                    {
                        "name": "code",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Jurisdiction code"
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
                        "description": "Unknown jurisdiction",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/transfers/evaluate": {
            "post": {
                "tags": [
                    "Transfers"
                ],
                "summary": "Evaluate a transfer credit claim without storing it",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EvaluateTransferRequest"
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
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/transfers/{id}/resolve": {
            "post": {
                "tags": [
                    "Transfers"
                ],
                "summary": "Resolve a claim awaiting manual review",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Claim ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ResolveTransferRequest"
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
                    "409": {
                        "description": "Claim already decided",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Enrol an apprentice",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateEnrollmentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}": {
            "get": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Get an enrollment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/sites": {
            "post": {
                "tags": [
                    "Enrollments"
                ],
                "summary": "Register a partner site geofence",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateSiteRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}/transfers": {
            "get": {
                "tags": [
                    "Transfers"
                ],
                "summary": "List transfer claims of an enrollment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Transfers"
                ],
                "summary": "Submit a transfer credit claim",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitTransferRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/eligibility/check": {
            "post": {
                "tags": [
                    "Eligibility"
                ],
                "summary": "Check exam eligibility for given totals",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/EligibilityRequest"
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
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/eligibility/remaining": {
            "post": {
                "tags": [
                    "Eligibility"
                ],
                "summary": "Calculate remaining hours toward licensure",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RemainingHoursRequest"
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
                        "description": "Unknown jurisdiction",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}/eligibility": {
            "get": {
                "tags": [
                    "Eligibility"
                ],
                "summary": "Exam eligibility from recorded hours",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}/progress": {
            "get": {
                "tags": [
                    "Progress"
                ],
                "summary": "Progress toward licensure",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}/hours": {
            "get": {
                "tags": [
                    "Hours"
                ],
                "summary": "List hour entries",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/hours/{id}/verify": {
            "post": {
                "tags": [
                    "Hours"
                ],
                "summary": "Verify an hour entry",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hour entry ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Entry superseded",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/hours/{id}/correct": {
            "post": {
                "tags": [
                    "Hours"
                ],
                "summary": "Replace an hour entry with a correction",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hour entry ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CorrectHoursRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/session": {
            "get": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Current timeclock session of the caller",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/clock-in": {
            "post": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Clock in at the partner site",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/TimeclockActionRequest"
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
                    "409": {
                        "description": "Invalid transition or acknowledgement required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "No active enrollment or partner site",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Location unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Outside the geofence",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/clock-out": {
            "post": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Clock out and record the worked hours",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/TimeclockActionRequest"
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
                    "409": {
                        "description": "Invalid transition or acknowledgement required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "No active enrollment or partner site",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Location unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/lunch-start": {
            "post": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Start the lunch break",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/TimeclockActionRequest"
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
                    "409": {
                        "description": "Invalid transition or acknowledgement required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "No active enrollment or partner site",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Location unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/lunch-end": {
            "post": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "End the lunch break",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/TimeclockActionRequest"
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
                    "409": {
                        "description": "Invalid transition or acknowledgement required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "No active enrollment or partner site",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Location unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/heartbeat": {
            "post": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Report a location reading while clocked in",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/TimeclockActionRequest"
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
                    "409": {
                        "description": "Invalid transition or acknowledgement required",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "412": {
                        "description": "No active enrollment or partner site",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Location unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/reset": {
            "post": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Acknowledge an automatic clock-out",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/timeclock/alerts": {
            "get": {
                "tags": [
                    "Timeclock"
                ],
                "summary": "Recent timeclock alerts",
                "parameters": [
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "default": 50
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/enrollments/{id}/reports": {
            "post": {
                "tags": [
                    "Reports"
                ],
                "summary": "Export a progress report",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Enrollment ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ExportProgressRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/reports/download": {
            "get": {
                "tags": [
                    "Reports"
                ],
                "summary": "Download an exported report by signed token",
                "produces": [
                    "application/octet-stream"
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "query",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Report file"
                    },
                    "403": {
                        "description": "Invalid or expired token",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "EvaluateTransferRequest": {
            "type": "object",
            "required": [
                "jurisdiction_code",
                "source_type"
            ],
            "properties": {
                "jurisdiction_code": {
                    "type": "string"
                },
                "source_type": {
                    "type": "string",
                    "enum": [
                        "host_site",
                        "in_state_barber_school",
                        "out_of_state_school",
                        "out_of_state_license",
                        "continuing_education"
                    ]
                },
                "source_jurisdiction": {
                    "type": "string"
                },
                "hours_claimed": {
                    "type": "number",
                    "minimum": 0
                },
                "has_supporting_documents": {
                    "type": "boolean"
                },
                "current_accepted_transfer_hours": {
                    "type": "number"
                }
            }
        },
        "SubmitTransferRequest": {
            "type": "object",
            "required": [
                "source_type",
                "hours_claimed"
            ],
            "properties": {
                "source_type": {
                    "type": "string",
                    "enum": [
                        "host_site",
                        "in_state_barber_school",
                        "out_of_state_school",
                        "out_of_state_license",
                        "continuing_education"
                    ]
                },
                "source_jurisdiction": {
                    "type": "string"
                },
                "hours_claimed": {
                    "type": "number",
                    "minimum": 0
                },
                "has_supporting_documents": {
                    "type": "boolean"
                }
            }
        },
        "ResolveTransferRequest": {
            "type": "object",
            "properties": {
                "documents_verified": {
                    "type": "boolean"
                },
                "reject": {
                    "type": "boolean"
                },
                "note": {
                    "type": "string"
                }
            }
        },
        "EligibilityRequest": {
            "type": "object",
            "required": [
                "jurisdiction_code"
            ],
            "properties": {
                "jurisdiction_code": {
                    "type": "string"
                },
                "total_accepted_hours": {
                    "type": "number"
                },
                "has_pending_reviews": {
                    "type": "boolean"
                }
            }
        },
        "RemainingHoursRequest": {
            "type": "object",
            "required": [
                "jurisdiction_code"
            ],
            "properties": {
                "jurisdiction_code": {
                    "type": "string"
                },
                "total_accepted_hours": {
                    "type": "number"
                }
            }
        },
        "CreateEnrollmentRequest": {
            "type": "object",
            "required": [
                "apprentice_id",
                "jurisdiction_code"
            ],
            "properties": {
                "apprentice_id": {
                    "type": "string"
                },
                "jurisdiction_code": {
                    "type": "string"
                },
                "site_id": {
                    "type": "string"
                },
                "started_at": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "CreateSiteRequest": {
            "type": "object",
            "required": [
                "name",
                "radius_m"
            ],
            "properties": {
                "name": {
                    "type": "string"
                },
                "center_lat": {
                    "type": "number"
                },
                "center_lng": {
                    "type": "number"
                },
                "radius_m": {
                    "type": "number"
                }
            }
        },
        "CorrectHoursRequest": {
            "type": "object",
            "required": [
                "hours",
                "reason"
            ],
            "properties": {
                "hours": {
                    "type": "number"
                },
                "category": {
                    "type": "string",
                    "enum": [
                        "RTI",
                        "OJT"
                    ]
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "ExportProgressRequest": {
            "type": "object",
            "required": [
                "format"
            ],
            "properties": {
                "format": {
                    "type": "string",
                    "enum": [
                        "csv",
                        "pdf",
                        "xlsx"
                    ]
                }
            }
        },
        "LocationPayload": {
            "type": "object",
            "properties": {
                "lat": {
                    "type": "number"
                },
                "lng": {
                    "type": "number"
                },
                "accuracy_m": {
                    "type": "number"
                },
                "error": {
                    "type": "string"
                }
            }
        },
        "TimeclockActionRequest": {
            "type": "object",
            "properties": {
                "location": {
                    "$ref": "#/definitions/LocationPayload"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
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
