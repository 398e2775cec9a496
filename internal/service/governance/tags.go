// Package governance manages the PII governance tag and the masking policy bound to it.
package governance

import (
	"context"
	"log/slog"

	"pii-tagger/internal/ddl"
	"pii-tagger/internal/domain"
)

// TagService creates the governance tag and assigns it to classified columns.
type TagService struct {
	logger *slog.Logger
}

// NewTagService creates a new TagService.
func NewTagService(logger *slog.Logger) *TagService {
	return &TagService{logger: logger}
}

// EnsureTag creates the tag in the target schema if it does not exist.
func (s *TagService) EnsureTag(ctx context.Context, sess domain.Session, target domain.Target, tag string) error {
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "create tag " + tag}, func() (string, error) {
		return ddl.CreateTag(target.Database, target.Schema, tag)
	})
}

// ClassifyAndTag sets tag = 'true' on every classified column, in column name
// order. It stops at the first failure without undoing earlier columns and
// returns the columns tagged so far.
func (s *TagService) ClassifyAndTag(ctx context.Context, sess domain.Session, tag string, cc domain.ColumnClassification) ([]string, error) {
	table := cc.Table
	tagged := make([]string, 0, len(cc.Columns))
	for _, column := range cc.ColumnNames() {
		stmt, err := ddl.SetColumnTag(table.Database, table.Schema, table.Name, column, tag, domain.TagValue)
		if err != nil {
			return tagged, &domain.DDLExecutionError{Step: "tag column", Table: table.Qualified(), Column: column, Err: err}
		}
		s.logger.Debug("tagging column", "table", table.Qualified(), "column", column)
		if err := sess.Exec(ctx, stmt); err != nil {
			return tagged, &domain.DDLExecutionError{
				Step:      "tag column",
				Table:     table.Qualified(),
				Column:    column,
				Statement: stmt,
				Err:       err,
			}
		}
		tagged = append(tagged, column)
	}
	return tagged, nil
}
