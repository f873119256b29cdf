package risk

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/risk_inputs.schema.json
var riskInputsSchemaJSON string

const riskInputsSchemaURL = "https://decisioncore.local/schema/risk_inputs.schema.json"

var (
	schemaOnce    sync.Once
	schemaCompile *jsonschema.Schema
	schemaErr     error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(riskInputsSchemaURL, strings.NewReader(riskInputsSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("risk: load schema resource: %w", err)
			return
		}
		schema, err := c.Compile(riskInputsSchemaURL)
		if err != nil {
			schemaErr = fmt.Errorf("risk: compile schema: %w", err)
			return
		}
		schemaCompile = schema
	})
	return schemaCompile, schemaErr
}

// ValidateSchema checks a raw risk-inputs payload against the JSON Schema
// gate that runs before field-level validation in Validate. This catches
// wrong-typed or structurally malformed payloads (arriving from the
// out-of-scope ingestion collaborator) with the same fail-closed
// semantics as a typed validation failure.
func ValidateSchema(payload []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", ErrInvalidInputs, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: schema validation failed: %v", ErrInvalidInputs, err)
	}
	return nil
}
