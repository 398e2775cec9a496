// Package catalog resolves the set of tables a run operates on.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pii-tagger/internal/ddl"
	"pii-tagger/internal/domain"
)

// showTablesNameIndex is the position of the "name" column in SHOW TABLES
// output, used when the driver does not report column names.
const showTablesNameIndex = 1

// CatalogService enumerates tables in the target schema.
type CatalogService struct {
	logger *slog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(logger *slog.Logger) *CatalogService {
	return &CatalogService{logger: logger}
}

// ResolveTables returns the tables to process. A non-empty override list is
// used verbatim and in order, without checking the tables exist. Otherwise
// every table in the target schema is returned in catalog order.
func (s *CatalogService) ResolveTables(ctx context.Context, sess domain.Session, target domain.Target, overrides []string) ([]domain.TableRef, error) {
	if len(overrides) > 0 {
		tables := make([]domain.TableRef, len(overrides))
		for i, name := range overrides {
			tables[i] = target.Table(name)
		}
		s.logger.Debug("using table override list", "tables", overrides)
		return tables, nil
	}

	stmt, err := ddl.ShowTables(target.Database, target.Schema)
	if err != nil {
		return nil, &domain.CatalogUnavailableError{Target: target, Err: err}
	}
	cols, rows, err := sess.Query(ctx, stmt)
	if err != nil {
		return nil, &domain.CatalogUnavailableError{Target: target, Err: err}
	}

	idx := nameColumn(cols)
	tables := make([]domain.TableRef, 0, len(rows))
	for i, row := range rows {
		name, ok := row.Text(idx)
		if !ok || name == "" {
			return nil, &domain.CatalogUnavailableError{
				Target: target,
				Err:    fmt.Errorf("row %d: no table name in column %d", i, idx),
			}
		}
		s.logger.Debug("adding table", "table", name)
		tables = append(tables, target.Table(name))
	}
	return tables, nil
}

func nameColumn(cols []string) int {
	for i, c := range cols {
		if strings.EqualFold(c, "name") {
			return i
		}
	}
	return showTablesNameIndex
}
