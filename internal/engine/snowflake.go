package engine

import (
	"fmt"
	"log/slog"

	"github.com/snowflakedb/gosnowflake"

	"pii-tagger/internal/config"
)

// snowflakeDriver is the database/sql driver name gosnowflake registers.
const snowflakeDriver = "snowflake"

// NewSnowflakeOpener builds an Opener from the run configuration. The
// session starts in the target database, schema, and warehouse.
func NewSnowflakeOpener(cfg *config.Config, logger *slog.Logger) (*Opener, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:     cfg.Account,
		User:        cfg.User,
		Password:    cfg.Password,
		Database:    cfg.Target.Database,
		Schema:      cfg.Target.Schema,
		Warehouse:   cfg.Target.Warehouse,
		Role:        cfg.Role,
		Application: "pii-tagger",
	})
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}
	return &Opener{DriverName: snowflakeDriver, DSN: dsn, Logger: logger}, nil
}
