/*
PURPOSE:
  Entry point for the gotest-jtl application.
  Initializes the CLI root command and executes it.

REQUIREMENTS:
  User-specified:
  - Must serve as the single binary entry point.
  - Exit 0 (passed), 1 (tests failed) or 2 (runtime error).

ARCHITECTURE INTEGRATION:
  - Calls: internal/cli.Execute()
  - Depends on: internal/cli package

IMPLEMENTATION RULES:
  - Critical: Keep main() minimal. All logic belongs in internal/ packages.
  - Do not put business logic here.

USAGE:
  go build -o gotest-jtl ./cmd/gotest-jtl
  ./gotest-jtl run -s samples.jtl -e errors.jtl ./...

SELF-HEALING INSTRUCTIONS:
  - If CLI fails to start, check internal/cli/root.go definition.
  - If imports fail, run `go mod tidy`.

RELATED FILES:
  - internal/cli/root.go - The actual root command definition.
*/

package main

import (
	"os"

	"github.com/daryltucker/gotest-jtl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
