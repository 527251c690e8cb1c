package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/kaptinlin/jsonschema"

	"cortexdb/internal/domain"
)

// requestSchemas holds the compiled JSON Schemas request bodies are
// validated against before being decoded into their typed Go shape, so a
// caller gets one schema-shaped error message instead of a raw decode
// failure or a zero-valued field silently passing through.
var (
	databaseCreateSchema = mustCompileSchema(`{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"description": {"type": "string"}
		}
	}`)

	// ProviderConfig and APIKey carry no json struct tags, so their wire
	// encoding is their Go field names verbatim; the schemas below validate
	// against that same casing.
	providerCreateSchema = mustCompileSchema(`{
		"type": "object",
		"required": ["Name", "Kind", "EmbeddingModel"],
		"properties": {
			"Name": {"type": "string", "minLength": 1},
			"Kind": {"type": "string", "enum": ["openai", "gemini", "ollama"]},
			"EmbeddingModel": {"type": "string", "minLength": 1},
			"BaseURL": {"type": "string"},
			"APIKey": {"type": "string"}
		}
	}`)

	apiKeyCreateSchema = mustCompileSchema(`{
		"type": "object",
		"required": ["Name", "Type"],
		"properties": {
			"Name": {"type": "string", "minLength": 1},
			"Description": {"type": "string"},
			"Type": {"type": "string", "enum": ["admin", "database", "readonly"]},
			"Databases": {"type": "array", "items": {"type": "string"}}
		}
	}`)
)

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic("gateway: invalid embedded json schema: " + err.Error())
	}
	return schema
}

// decodeValidated reads r's body once, validates it against schema, then
// decodes the same bytes into v. The body is consumed even on a validation
// failure, matching decodeJSON's one-shot contract.
func decodeValidated(r *http.Request, schema *jsonschema.Schema, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return domain.NewDomainError("gateway.decode", domain.ErrSchemaInvalid, err.Error())
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return domain.NewDomainError("gateway.decode", domain.ErrSchemaInvalid, err.Error())
	}
	if result := schema.Validate(generic); !result.IsValid() {
		return domain.NewDomainError("gateway.schema", domain.ErrSchemaInvalid, result.Error())
	}

	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewDomainError("gateway.decode", domain.ErrSchemaInvalid, err.Error())
	}
	return nil
}
