package domain

import "sort"

// Defaults for the governance objects a run manages.
const (
	DefaultTagName      = "PII_DETECTED"
	DefaultPolicyName   = "MASK_PII"
	DefaultUnmaskedRole = "SANDBOX_UNMASKED_READ_ROLE"
	DefaultMaskedRole   = "SANDBOX_MASKED_READ_ROLE"

	// TagValue is the value assigned to every tagged column.
	TagValue = "true"

	// MaskedMarker replaces column values for roles that may not see raw data.
	MaskedMarker = "**masked**"
)

// RecommendationKey is the metadata key the classification oracle sets on
// columns it recommends for a privacy category.
const RecommendationKey = "recommendation"

// ColumnCategory is the oracle's metadata for one column. Only the presence of
// the recommendation marker drives tagging; the rest is kept for logging.
type ColumnCategory map[string]any

// Recommended reports whether the oracle recommended this column.
func (c ColumnCategory) Recommended() bool {
	_, ok := c[RecommendationKey]
	return ok
}

// ColumnClassification is the set of PII columns found for one table.
// It is recomputed on every run.
type ColumnClassification struct {
	Table   TableRef
	Columns map[string]struct{}
}

// NewColumnClassification keeps the recommended columns from an oracle result.
func NewColumnClassification(table TableRef, categories map[string]ColumnCategory) ColumnClassification {
	cc := ColumnClassification{Table: table, Columns: make(map[string]struct{})}
	for name, cat := range categories {
		if cat.Recommended() {
			cc.Columns[name] = struct{}{}
		}
	}
	return cc
}

// ColumnNames returns the classified columns sorted by name, so statements
// are issued in a deterministic order.
func (c ColumnClassification) ColumnNames() []string {
	names := make([]string, 0, len(c.Columns))
	for n := range c.Columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
