// File path: cmd/docverge/main.go
package main

import (
	"os"

	"docverge/cmd/docverge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
