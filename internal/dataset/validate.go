package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/dataset-v2.json
var v2Schema []byte

const v2SchemaName = "dataset-v2.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(v2SchemaName, bytes.NewReader(v2Schema)); err != nil {
			compileErr = fmt.Errorf("could not load dataset schema: %v", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(v2SchemaName)
	})
	return compiledSchema, compileErr
}

// Validate checks that d is a valid v2 dataset.
func Validate(d *V2) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("could not marshal dataset: %v", err)
	}
	return ValidateJSON(b)
}

// ValidateJSON checks that the JSON document b is a valid v2 dataset.
func ValidateJSON(b []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("dataset is not valid JSON: %v", err)
	}

	if err := s.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("dataset does not match the v2 schema: %s", strings.Join(leafErrors(verr), "; "))
		}
		return err
	}
	return nil
}

// leafErrors flattens a validation error to its innermost causes.
func leafErrors(err *jsonschema.ValidationError) []string {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, err.Message)}
	}
	var out []string
	for _, c := range err.Causes {
		out = append(out, leafErrors(c)...)
	}
	return out
}
