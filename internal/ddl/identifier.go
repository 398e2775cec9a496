package ddl

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// unquotedRe matches a Snowflake identifier that may be written without quotes.
// Unquoted identifiers resolve case-insensitively, i.e. to their upper-case form.
var unquotedRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// maxIdentifierLen is the maximum length allowed for a Snowflake identifier.
const maxIdentifierLen = 255

// ValidateIdentifier checks that name can be emitted as a quoted identifier:
//   - Non-empty
//   - At most 255 characters
//   - No control characters
//
// Any other character is allowed because QuoteIdentifier escapes embedded quotes.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name must not contain control characters")
		}
	}
	return nil
}

// NormalizeIdentifier turns an operator-supplied name into the exact stored name.
//
//	customers     → CUSTOMERS   (unquoted names resolve upper-case)
//	"MixedCase"   → MixedCase   (quoted names are kept exact)
//	"a""b"        → a"b
//
// Unquoted input that is not a plain identifier is rejected.
func NormalizeIdentifier(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		inner := name[1 : len(name)-1]
		if strings.Contains(strings.ReplaceAll(inner, `""`, ""), `"`) {
			return "", fmt.Errorf("identifier %s has an unescaped double quote", name)
		}
		exact := strings.ReplaceAll(inner, `""`, `"`)
		if err := ValidateIdentifier(exact); err != nil {
			return "", err
		}
		return exact, nil
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if !unquotedRe.MatchString(name) {
		return "", fmt.Errorf("identifier %q must match [a-zA-Z_][a-zA-Z0-9_$]* or be double-quoted", name)
	}
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return strings.ToUpper(name), nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them.
//
// Always quotes unconditionally, so the stored name is matched exactly.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them. Backslashes are
// doubled too because Snowflake treats them as escapes inside literals.
func QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QualifiedName validates each part and joins the quoted parts with dots.
func QualifiedName(parts ...string) (string, error) {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if err := ValidateIdentifier(p); err != nil {
			return "", fmt.Errorf("invalid identifier %q: %w", p, err)
		}
		quoted[i] = QuoteIdentifier(p)
	}
	return strings.Join(quoted, "."), nil
}
