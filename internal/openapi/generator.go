// Package openapi builds the OpenAPI document describing the packetdesk
// HTTP API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Options controls the generated document.
type Options struct {
	BaseURL string
	Version string

	// OpenRegistration drops the bearer requirement from the register
	// operation.
	OpenRegistration bool
}

// Generate returns the OpenAPI 3.1 document for the admin and packet APIs.
func Generate(opts Options) *openapi3.T {
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "packetdesk API",
			Description: "Admin authentication and PDF packet assembly.",
			Version:     version,
		},
	}
	if opts.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: opts.BaseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	addAdminPaths(doc, opts.OpenRegistration)
	addPacketPaths(doc)

	return doc
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func addSchemas(schemas openapi3.Schemas) {
	schemas["ErrorResponse"] = objectSchema(openapi3.Schemas{
		"error": objectSchema(openapi3.Schemas{
			"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"message": stringSchema(""),
			"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}),
	})

	schemas["Admin"] = objectSchema(openapi3.Schemas{
		"id":         stringSchema(""),
		"email":      stringSchema("email"),
		"is_active":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
		"created_at": stringSchema("date-time"),
		"last_login": stringSchema("date-time"),
	})

	creds := objectSchema(openapi3.Schemas{
		"email":    stringSchema("email"),
		"password": stringSchema("password"),
	})
	creds.Value.Required = []string{"email", "password"}
	schemas["Credentials"] = creds

	schemas["LoginResponse"] = objectSchema(openapi3.Schemas{
		"session_token": stringSchema(""),
		"token_type":    stringSchema(""),
		"expires_in":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
		"user":          openapi3.NewSchemaRef("#/components/schemas/Admin", nil),
	})

	change := objectSchema(openapi3.Schemas{
		"old_password": stringSchema("password"),
		"new_password": stringSchema("password"),
	})
	change.Value.Required = []string{"old_password", "new_password"}
	schemas["ChangePassword"] = change

	one := uint64(1)
	packetReq := objectSchema(openapi3.Schemas{
		"title": stringSchema(""),
		"documents": &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:     &openapi3.Types{"array"},
			MinItems: one,
			Items:    stringSchema(""),
		}},
	})
	packetReq.Value.Required = []string{"title", "documents"}
	schemas["PacketRequest"] = packetReq

	schemas["Success"] = objectSchema(openapi3.Schemas{
		"success": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
		"message": stringSchema(""),
		"user":    openapi3.NewSchemaRef("#/components/schemas/Admin", nil),
	})
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addAdminPaths(doc *openapi3.T, openRegistration bool) {
	register := &openapi3.Operation{
		Tags:        []string{"admin"},
		Summary:     "Register an admin",
		OperationID: "register_admin",
		RequestBody: jsonBody("Email and password for the new account", "#/components/schemas/Credentials"),
		Responses:   newResponses("201", "Admin created", openapi3.NewSchemaRef("#/components/schemas/Success", nil)),
	}
	if !openRegistration {
		register.Security = bearerOnly()
	}
	doc.Paths.Set("/api/v1/admin/register", &openapi3.PathItem{Post: register})

	doc.Paths.Set("/api/v1/admin/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Log in",
			Description: "Verifies credentials and returns a signed bearer token. Rate limited per client IP.",
			OperationID: "login_admin",
			RequestBody: jsonBody("Admin credentials", "#/components/schemas/Credentials"),
			Responses:   newResponses("200", "Logged in", openapi3.NewSchemaRef("#/components/schemas/LoginResponse", nil)),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Log out",
			OperationID: "logout_admin",
			Responses:   newResponses("200", "Logged out", openapi3.NewSchemaRef("#/components/schemas/Success", nil)),
		},
	})

	doc.Paths.Set("/api/v1/admin/me", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Current admin",
			OperationID: "current_admin",
			Security:    bearerOnly(),
			Responses: newResponses("200", "Authenticated identity", objectSchema(openapi3.Schemas{
				"id":    stringSchema(""),
				"email": stringSchema("email"),
			})),
		},
	})

	doc.Paths.Set("/api/v1/admin/password", &openapi3.PathItem{
		Put: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Change password",
			OperationID: "change_password",
			Security:    bearerOnly(),
			RequestBody: jsonBody("Current and new password", "#/components/schemas/ChangePassword"),
			Responses:   newResponses("200", "Password changed", openapi3.NewSchemaRef("#/components/schemas/Success", nil)),
		},
	})
}

func addPacketPaths(doc *openapi3.T) {
	disposition := &openapi3.ParameterRef{Value: &openapi3.Parameter{
		Name:        "disposition",
		In:          "query",
		Description: "inline (preview, default) or attachment (download)",
		Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type: &openapi3.Types{"string"},
			Enum: []interface{}{"inline", "attachment"},
		}},
	}}

	pdfDesc := "Generated PDF packet"
	responses := newResponses("200", pdfDesc, nil)
	responses.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &pdfDesc,
		Content: openapi3.Content{
			"application/pdf": &openapi3.MediaType{
				Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "binary"}},
			},
		},
	}})
	addErrorResponse(responses, "502", "PDF worker failed")

	doc.Paths.Set("/api/v1/packets", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"packets"},
			Summary:     "Build a packet",
			Description: "Gathers the named documents and returns the PDF produced by the generation worker.",
			OperationID: "build_packet",
			Security:    bearerOnly(),
			Parameters:  openapi3.Parameters{disposition},
			RequestBody: jsonBody("Packet title and document names", "#/components/schemas/PacketRequest"),
			Responses:   responses,
		},
	})

	doc.Paths.Set("/api/v1/packets/documents", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"packets"},
			Summary:     "List documents",
			OperationID: "list_documents",
			Security:    bearerOnly(),
			Responses: newResponses("200", "Selectable documents", objectSchema(openapi3.Schemas{
				"resource": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: objectSchema(openapi3.Schemas{"name": stringSchema("")}),
				}},
			})),
		},
	})
}

// ─── Builders ───────────────────────────────────────────────────────────────

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
	}}
}

func stringSchema(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:   &openapi3.Types{"string"},
		Format: format,
	}}
}

func bearerOnly() *openapi3.SecurityRequirements {
	return &openapi3.SecurityRequirements{{"bearerAuth": {}}}
}

func jsonBody(description, ref string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Description: description,
		Required:    true,
		Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(ref, nil)),
	}}
}

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	addErrorResponse(responses, "400", "Bad request")
	addErrorResponse(responses, "401", "Unauthorized")
	addErrorResponse(responses, "500", "Internal server error")

	return responses
}

func addErrorResponse(responses *openapi3.Responses, code, description string) {
	desc := description
	responses.Set(code, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
		},
	})
}
