// internal/common/validation/schema.go
// Package validation checks snapshot payloads before they are persisted as
// immutable versions. A malformed tree must never enter the version chain.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"menusync/internal/common/errors"
	"menusync/internal/models"
)

const snapshotSchema = `{
	"type": "object",
	"required": ["categories"],
	"additionalProperties": false,
	"properties": {
		"categories": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "items"],
				"properties": {
					"id":   {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"items": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["id", "name", "price", "isAvailable"],
							"properties": {
								"id":          {"type": "string", "minLength": 1},
								"name":        {"type": "string", "minLength": 1},
								"price":       {"type": "number", "minimum": 0},
								"description": {"type": "string"},
								"imageUrl":    {"type": "string"},
								"isAvailable": {"type": "boolean"}
							}
						}
					}
				}
			}
		}
	}
}`

var snapshotSchemaLoader = gojsonschema.NewStringLoader(snapshotSchema)

// ValidateSnapshotJSON validates a serialized snapshot tree against the
// snapshot schema. Duplicate item ids are rejected separately since JSON
// Schema cannot express cross-array uniqueness.
func ValidateSnapshotJSON(raw []byte) error {
	result, err := gojsonschema.Validate(snapshotSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("snapshot is not valid JSON: %s", err.Error()))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.NewValidationError("snapshot schema violation: " + strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateSnapshot checks structural constraints the schema cannot express:
// item ids must be unique across the whole tree (item identity in diffs is
// by id), and category ids must be unique.
func ValidateSnapshot(snap models.Snapshot) error {
	seenCats := make(map[string]bool, len(snap.Categories))
	seenItems := make(map[string]bool)
	for _, cat := range snap.Categories {
		if seenCats[cat.ID] {
			return errors.NewValidationError(fmt.Sprintf("duplicate category id %q in snapshot", cat.ID))
		}
		seenCats[cat.ID] = true
		for _, it := range cat.Items {
			if seenItems[it.ID] {
				return errors.NewValidationError(fmt.Sprintf("duplicate item id %q in snapshot", it.ID))
			}
			seenItems[it.ID] = true
		}
	}
	return nil
}
