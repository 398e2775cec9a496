// Command pii-tagger tags PII columns in a Snowflake schema and masks them.
package main

import (
	"os"

	"pii-tagger/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
