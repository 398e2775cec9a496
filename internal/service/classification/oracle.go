// Package classification asks the platform's semantic classifier which columns hold PII.
package classification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pii-tagger/internal/ddl"
	"pii-tagger/internal/domain"
)

// Compile-time check.
var _ domain.ClassificationOracle = (*SemanticOracle)(nil)

// SemanticOracle calls EXTRACT_SEMANTIC_CATEGORIES for a table and decodes
// the JSON document it returns: one key per column, each mapping to the
// column's category metadata.
type SemanticOracle struct {
	logger *slog.Logger
}

// NewSemanticOracle creates a SemanticOracle.
func NewSemanticOracle(logger *slog.Logger) *SemanticOracle {
	return &SemanticOracle{logger: logger}
}

// Classify returns the oracle's metadata for every column of table.
func (o *SemanticOracle) Classify(ctx context.Context, sess domain.Session, table domain.TableRef) (map[string]domain.ColumnCategory, error) {
	stmt, args, err := ddl.ExtractSemanticCategories(table.Database, table.Schema, table.Name)
	if err != nil {
		return nil, err
	}
	_, rows, err := sess.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("expected one result row, got %d", len(rows))
	}
	doc, ok := rows[0].Text(0)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", rows[0][0])
	}

	categories, err := Decode(doc)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("classified table", "table", table.Qualified(), "columns", len(categories))
	return categories, nil
}

// Decode parses an EXTRACT_SEMANTIC_CATEGORIES result document.
func Decode(doc string) (map[string]domain.ColumnCategory, error) {
	var categories map[string]domain.ColumnCategory
	if err := json.Unmarshal([]byte(doc), &categories); err != nil {
		return nil, fmt.Errorf("decode semantic categories: %w", err)
	}
	return categories, nil
}
