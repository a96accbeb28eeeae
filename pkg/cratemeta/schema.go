/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cratemeta

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/cargo-metadata-v1.schema.json
var metadataSchemaV1 []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(metadataSchemaV1))
})

// validateDocument checks the fields this package exposes are present and
// correctly typed. Fields outside the schema are not constrained.
func validateDocument(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return newError(KindDecode, "validate", "schema", fmt.Errorf("failed to compile embedded schema: %w", err))
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return newError(KindDecode, "validate", "", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return newError(KindDecode, "validate", "", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
