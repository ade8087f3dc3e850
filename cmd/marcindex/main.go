// Package main provides the entry point for the marcindex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/marcindex/cmd/marcindex/cmd"
	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, ierrors.FormatForCLI(err))
		os.Exit(1)
	}
}
