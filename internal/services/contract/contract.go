// Package contract checks generated snapshots against the published JSON
// schema before they are decoded.
package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"OmniSpectrum/internal/domain/models"
)

//go:embed snapshot.schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("snapshot.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = compiler.Compile("snapshot.schema.json")
	})
	return compiled, compileErr
}

// Validate checks raw against the snapshot schema.
func Validate(raw []byte) error {
	sch, err := schema()
	if err != nil {
		return fmt.Errorf("compile snapshot schema: %w", err)
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidSnapshot, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidSnapshot, err)
	}
	return nil
}

// Parse validates raw against the schema and then decodes it.
func Parse(raw []byte) (*models.Document, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	return models.ParseDocument(raw)
}
