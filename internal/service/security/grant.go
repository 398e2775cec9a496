// Package security creates the access-tier roles and grants them read access.
//
// Grants are only ever added. Granting a privilege the role already holds
// succeeds without change, so every call here is safe to repeat.
package security

import (
	"context"
	"log/slog"

	"pii-tagger/internal/ddl"
	"pii-tagger/internal/domain"
)

// GrantService provides role creation and privilege grant operations.
type GrantService struct {
	logger *slog.Logger
}

// NewGrantService creates a new GrantService.
func NewGrantService(logger *slog.Logger) *GrantService {
	return &GrantService{logger: logger}
}

// UseRole switches the session to role.
func (s *GrantService) UseRole(ctx context.Context, sess domain.Session, role string) error {
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "use role " + role}, func() (string, error) {
		return ddl.UseRole(role)
	})
}

// EnsureRole creates the role if it does not exist.
func (s *GrantService) EnsureRole(ctx context.Context, sess domain.Session, role domain.AccessRole) error {
	s.logger.Info("creating role (if not exists)", "role", role.Name, "tier", role.Tier)
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "create role " + role.Name}, func() (string, error) {
		return ddl.CreateRole(role.Name, role.Description)
	})
}

// GrantUsage grants USAGE on the target database, schema, and warehouse.
func (s *GrantService) GrantUsage(ctx context.Context, sess domain.Session, role string, target domain.Target) error {
	steps := []struct {
		step  string
		build func() (string, error)
	}{
		{"grant usage on database", func() (string, error) { return ddl.GrantUsageOnDatabase(target.Database, role) }},
		{"grant usage on schema", func() (string, error) { return ddl.GrantUsageOnSchema(target.Database, target.Schema, role) }},
		{"grant usage on warehouse", func() (string, error) { return ddl.GrantUsageOnWarehouse(target.Warehouse, role) }},
	}
	for _, st := range steps {
		if err := execStep(ctx, sess, domain.DDLExecutionError{Step: st.step + " to " + role}, st.build); err != nil {
			return err
		}
	}
	return nil
}

// GrantCreateSchema grants CREATE SCHEMA on database.
func (s *GrantService) GrantCreateSchema(ctx context.Context, sess domain.Session, role, database string) error {
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "grant create schema to " + role}, func() (string, error) {
		return ddl.GrantCreateSchema(database, role)
	})
}

// GrantSelect grants SELECT on one table.
func (s *GrantService) GrantSelect(ctx context.Context, sess domain.Session, role string, table domain.TableRef) error {
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "grant select to " + role, Table: table.Qualified()}, func() (string, error) {
		return ddl.GrantSelectOnTable(table.Database, table.Schema, table.Name, role)
	})
}
