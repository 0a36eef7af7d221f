// Package validate checks persisted records against the per-category JSON
// schemas before they are allowed into the published indexes.
package validate

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemaFiles = map[model.Category]string{
	model.CategoryServers:  "schemas/server.schema.json",
	model.CategoryClients:  "schemas/client.schema.json",
	model.CategoryUseCases: "schemas/usecase.schema.json",
}

// Violation is one record that failed its category schema.
type Violation struct {
	Category model.Category `json:"category"`
	ID       string         `json:"id"`
	Detail   string         `json:"detail"`
}

// Report aggregates a validation run over one or more categories.
type Report struct {
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations,omitempty"`
}

// Valid reports whether every checked record passed.
func (r *Report) Valid() bool { return len(r.Violations) == 0 }

// Validator holds the compiled per-category schemas.
type Validator struct {
	schemas map[model.Category]*jsonschema.Schema
}

// NewValidator compiles the embedded schemas. Compilation failure means the
// binary shipped with a broken schema, so callers should treat it as fatal.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	schemas := make(map[model.Category]*jsonschema.Schema, len(schemaFiles))
	for category, file := range schemaFiles {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded schema %s: %w", file, err)
		}
		if err := compiler.AddResource(file, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", file, err)
		}
		schema, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", file, err)
		}
		schemas[category] = schema
	}
	return &Validator{schemas: schemas}, nil
}

// ValidateRecord checks one record against its category schema. The record
// is round-tripped through JSON so the schema sees exactly what a consumer
// of the published files would see.
func (v *Validator) ValidateRecord(rec *model.Record) error {
	schema, ok := v.schemas[rec.Category]
	if !ok {
		return fmt.Errorf("no schema for category %q", rec.Category)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", rec.ID, err)
	}
	return schema.Validate(doc)
}

// ValidateAll checks every record of the given categories against their
// schemas and collects violations instead of stopping at the first one.
func (v *Validator) ValidateAll(ctx context.Context, records store.Store, categories []model.Category) (*Report, error) {
	report := &Report{}
	for _, category := range categories {
		recs, err := records.List(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", category, err)
		}
		for _, rec := range recs {
			report.Checked++
			if err := v.ValidateRecord(rec); err != nil {
				report.Violations = append(report.Violations, Violation{
					Category: category,
					ID:       rec.ID,
					Detail:   err.Error(),
				})
			}
		}
	}
	return report, nil
}
