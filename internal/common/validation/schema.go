// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Result carries the individual violations found in a document so the API
// layer can report them all at once.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateDocument validates data against a JSON-schema map.
func ValidateDocument(schemaMap, data map[string]interface{}) (*Result, error) {
	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &Result{Valid: false, Errors: errs}, nil
	}

	return &Result{Valid: true}, nil
}

// Summary flattens the violations into a single details string.
func (r *Result) Summary() string {
	return strings.Join(r.Errors, "; ")
}
