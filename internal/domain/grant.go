package domain

// Privilege constants for the grants the workflow issues.
const (
	PrivSelect       = "SELECT"
	PrivUsage        = "USAGE"
	PrivCreateSchema = "CREATE SCHEMA"
)

// Securable type constants, as they appear in GRANT ... ON <type>.
const (
	SecurableDatabase  = "DATABASE"
	SecurableSchema    = "SCHEMA"
	SecurableWarehouse = "WAREHOUSE"
	SecurableTable     = "TABLE"
)

// AccessTier distinguishes the two read roles.
type AccessTier string

// Access tiers.
const (
	TierUnmasked AccessTier = "unmasked"
	TierMasked   AccessTier = "masked"
)

// AccessRole is a role the workflow creates and grants read access to.
type AccessRole struct {
	Name        string
	Tier        AccessTier
	Description string
}

// UnmaskedReadRole builds the role that sees raw values.
func UnmaskedReadRole(name string) AccessRole {
	return AccessRole{
		Name:        name,
		Tier:        TierUnmasked,
		Description: "Read only unmasked view of PII-tagged data",
	}
}

// MaskedReadRole builds the role that sees the masked marker.
func MaskedReadRole(name string) AccessRole {
	return AccessRole{
		Name:        name,
		Tier:        TierMasked,
		Description: "Read only masked view of PII-tagged data",
	}
}
