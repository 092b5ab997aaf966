// gotestlog extracts located diagnostics from go test and go build output.
//
// It reads saved logs or standard input and reports every test failure,
// compiler error and panic at the file and line it points to, as text,
// JSON or editor quickfix lines.
package main

import (
	"os"

	"github.com/ccollicutt/gotestlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
