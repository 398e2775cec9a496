// Package ddl builds Snowflake governance statements for roles, grants, tags, and masking policies.
//
// Every interpolated name is validated and double-quoted, and every string
// value is emitted as an escaped literal.
package ddl

import (
	"fmt"
	"strings"

	"pii-tagger/internal/domain"
)

// UseRole returns: USE ROLE "<role>".
func UseRole(role string) (string, error) {
	if err := ValidateIdentifier(role); err != nil {
		return "", fmt.Errorf("invalid role name: %w", err)
	}
	return fmt.Sprintf("USE ROLE %s", QuoteIdentifier(role)), nil
}

// CreateRole returns: CREATE ROLE IF NOT EXISTS "<role>" COMMENT = '<comment>'.
func CreateRole(role, comment string) (string, error) {
	if err := ValidateIdentifier(role); err != nil {
		return "", fmt.Errorf("invalid role name: %w", err)
	}
	stmt := fmt.Sprintf("CREATE ROLE IF NOT EXISTS %s", QuoteIdentifier(role))
	if comment != "" {
		stmt += " COMMENT = " + QuoteLiteral(comment)
	}
	return stmt, nil
}

// GrantUsageOnDatabase returns: GRANT USAGE ON DATABASE "<db>" TO ROLE "<role>".
func GrantUsageOnDatabase(database, role string) (string, error) {
	return grant(domain.PrivUsage, domain.SecurableDatabase, role, database)
}

// GrantUsageOnSchema returns: GRANT USAGE ON SCHEMA "<db>"."<schema>" TO ROLE "<role>".
func GrantUsageOnSchema(database, schema, role string) (string, error) {
	return grant(domain.PrivUsage, domain.SecurableSchema, role, database, schema)
}

// GrantUsageOnWarehouse returns: GRANT USAGE ON WAREHOUSE "<wh>" TO ROLE "<role>".
func GrantUsageOnWarehouse(warehouse, role string) (string, error) {
	return grant(domain.PrivUsage, domain.SecurableWarehouse, role, warehouse)
}

// GrantCreateSchema returns: GRANT CREATE SCHEMA ON DATABASE "<db>" TO ROLE "<role>".
func GrantCreateSchema(database, role string) (string, error) {
	return grant(domain.PrivCreateSchema, domain.SecurableDatabase, role, database)
}

// GrantSelectOnTable returns:
// GRANT SELECT ON TABLE "<db>"."<schema>"."<table>" TO ROLE "<role>".
func GrantSelectOnTable(database, schema, table, role string) (string, error) {
	return grant(domain.PrivSelect, domain.SecurableTable, role, database, schema, table)
}

// grant builds GRANT <privilege> ON <securable> <object> TO ROLE <role>.
// privilege and securable are always domain constants, never user input.
func grant(privilege, securable, role string, object ...string) (string, error) {
	if err := ValidateIdentifier(role); err != nil {
		return "", fmt.Errorf("invalid role name: %w", err)
	}
	name, err := QualifiedName(object...)
	if err != nil {
		return "", fmt.Errorf("invalid %s name: %w", strings.ToLower(securable), err)
	}
	return fmt.Sprintf("GRANT %s ON %s %s TO ROLE %s", privilege, securable, name, QuoteIdentifier(role)), nil
}

// CreateTag returns: CREATE TAG IF NOT EXISTS "<db>"."<schema>"."<tag>".
func CreateTag(database, schema, tag string) (string, error) {
	name, err := QualifiedName(database, schema, tag)
	if err != nil {
		return "", fmt.Errorf("invalid tag name: %w", err)
	}
	return fmt.Sprintf("CREATE TAG IF NOT EXISTS %s", name), nil
}

// SetColumnTag returns:
//
//	ALTER TABLE "<db>"."<schema>"."<table>" MODIFY COLUMN "<column>"
//	  SET TAG "<db>"."<schema>"."<tag>" = '<value>'
//
// The tag lives in the same database and schema as the table.
func SetColumnTag(database, schema, table, column, tag, value string) (string, error) {
	tableName, err := QualifiedName(database, schema, table)
	if err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if err := ValidateIdentifier(column); err != nil {
		return "", fmt.Errorf("invalid column name %q: %w", column, err)
	}
	tagName, err := QualifiedName(database, schema, tag)
	if err != nil {
		return "", fmt.Errorf("invalid tag name: %w", err)
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s SET TAG %s = %s",
		tableName,
		QuoteIdentifier(column),
		tagName,
		QuoteLiteral(value),
	), nil
}

// CreateMaskingPolicy returns a two-branch string masking policy:
//
//	CREATE MASKING POLICY IF NOT EXISTS "<db>"."<schema>"."<policy>" AS (val STRING) RETURNS STRING ->
//	  CASE WHEN CURRENT_ROLE() IN ('<unmasked role>') THEN val ELSE '<marker>' END
func CreateMaskingPolicy(database, schema, policy, unmaskedRole, marker string) (string, error) {
	name, err := QualifiedName(database, schema, policy)
	if err != nil {
		return "", fmt.Errorf("invalid policy name: %w", err)
	}
	if err := ValidateIdentifier(unmaskedRole); err != nil {
		return "", fmt.Errorf("invalid role name: %w", err)
	}
	return fmt.Sprintf(`CREATE MASKING POLICY IF NOT EXISTS %s AS (val STRING) RETURNS STRING ->
	CASE
		WHEN CURRENT_ROLE() IN (%s) THEN val
		ELSE %s
	END`,
		name,
		QuoteLiteral(unmaskedRole),
		QuoteLiteral(marker),
	), nil
}

// SetTagMaskingPolicy returns:
// ALTER TAG "<db>"."<schema>"."<tag>" SET MASKING POLICY "<db>"."<schema>"."<policy>" FORCE.
//
// FORCE replaces whatever policy the tag already carries, so repeating the
// statement with the same policy leaves the binding unchanged.
func SetTagMaskingPolicy(database, schema, tag, policy string) (string, error) {
	tagName, err := QualifiedName(database, schema, tag)
	if err != nil {
		return "", fmt.Errorf("invalid tag name: %w", err)
	}
	policyName, err := QualifiedName(database, schema, policy)
	if err != nil {
		return "", fmt.Errorf("invalid policy name: %w", err)
	}
	return fmt.Sprintf("ALTER TAG %s SET MASKING POLICY %s FORCE", tagName, policyName), nil
}

// ShowTables returns: SHOW TABLES IN SCHEMA "<db>"."<schema>".
func ShowTables(database, schema string) (string, error) {
	name, err := QualifiedName(database, schema)
	if err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	return fmt.Sprintf("SHOW TABLES IN SCHEMA %s", name), nil
}

// ExtractSemanticCategories returns the oracle query and its single bind
// argument, the quoted three-part table name.
func ExtractSemanticCategories(database, schema, table string) (string, []any, error) {
	name, err := QualifiedName(database, schema, table)
	if err != nil {
		return "", nil, fmt.Errorf("invalid table name: %w", err)
	}
	return "SELECT EXTRACT_SEMANTIC_CATEGORIES(?)", []any{name}, nil
}
