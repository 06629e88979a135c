// Package schema validates suite files against the embedded JSON schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed suites.schema.json
var suitesSchemaJSON []byte

var (
	suitesSchema *jsonschema.Schema
	compileOnce  sync.Once
	compileErr   error
)

// compile compiles the embedded schema once.
func compile() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(suitesSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal suites schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("suites.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add suites schema resource: %w", err)
			return
		}
		suitesSchema, err = compiler.Compile("suites.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile suites schema: %w", err)
		}
	})
	return compileErr
}

// ValidateSuiteFile validates YAML (or JSON) suite file content against the schema.
func ValidateSuiteFile(data []byte) error {
	if err := compile(); err != nil {
		return err
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	// Round-trip through JSON so the validator sees plain JSON types.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("convert suite file to JSON: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := suitesSchema.Validate(doc); err != nil {
		return fmt.Errorf("suite file validation failed: %w", err)
	}
	return nil
}
