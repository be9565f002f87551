package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docshift",
	Short: "Docshift migrates a relational database into MongoDB in dependency-safe phases.",
	Long: `Docshift migrates a relational database into MongoDB in dependency-safe phases.

It reads the source catalog (PostgreSQL, SQLite, libSQL, or SQL DDL files),
compares it against the target document store, orders entities into phases
that respect foreign key dependencies, and executes the migration one
entity at a time under operator control.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
