package cli

import (
	"io"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3" // run ledger driver

	"pii-tagger/internal/config"
	"pii-tagger/internal/domain"
	"pii-tagger/internal/engine"
	"pii-tagger/internal/service/classification"
)

// deps are the collaborators a command builds from its configuration.
// Tests replace them to run commands without a warehouse.
type deps struct {
	opener func(cfg *config.Config, logger *slog.Logger) (domain.SessionOpener, error)
	oracle func(logger *slog.Logger) domain.ClassificationOracle
	stderr io.Writer
	dotEnv string
}

func defaultDeps() *deps {
	return &deps{
		opener: func(cfg *config.Config, logger *slog.Logger) (domain.SessionOpener, error) {
			return engine.NewSnowflakeOpener(cfg, logger)
		},
		oracle: func(logger *slog.Logger) domain.ClassificationOracle {
			return classification.NewSemanticOracle(logger)
		},
		stderr: os.Stderr,
		dotEnv: ".env",
	}
}
