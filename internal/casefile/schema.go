package casefile

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaResource = "testcase-v1.json"

// Schema produces a JSON Schema document for test case files, reflected
// from the TestCase type.
func Schema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&TestCase{})
	s.ID = "https://github.com/rahul/casepilot/schemas/testcase-v1.json"
	s.Title = "casepilot test case"
	s.Description = "Ordered browser steps executed by casepilot"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

var (
	compileOnce sync.Once
	compiled    *sjsonschema.Schema
	compileErr  error
)

func compiledSchema() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		schemaJSON, err := Schema()
		if err != nil {
			compileErr = err
			return
		}
		var schemaDoc any
		if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schemaResource, schemaDoc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaResource)
	})
	return compiled, compileErr
}

func validateSchema(doc any) []*ValidationError {
	sch, err := compiledSchema()
	if err != nil {
		return []*ValidationError{{Phase: "schema", Message: err.Error()}}
	}

	// Round-trip through JSON so YAML scalars become JSON types.
	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{{Phase: "schema", Message: fmt.Sprintf("document is not JSON-compatible: %v", err)}}
	}
	var inst any
	if err := json.Unmarshal(data, &inst); err != nil {
		return []*ValidationError{{Phase: "schema", Message: err.Error()}}
	}

	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{{Phase: "schema", Message: err.Error()}}
		}
		var errs []*ValidationError
		for _, cause := range flatten(ve) {
			errs = append(errs, &ValidationError{
				Phase:   "schema",
				Path:    strings.Join(cause.InstanceLocation, "/"),
				Message: fmt.Sprintf("%v", cause.ErrorKind),
			})
		}
		return errs
	}
	return nil
}

// flatten collects the leaf validation errors.
func flatten(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flatten(cause)...)
	}
	return flat
}
