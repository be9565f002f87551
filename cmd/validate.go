package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docshift/docshift/internal/planner"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.json>",
	Short: "Validate an exported migration plan file",
	Long: `Validate an exported migration plan file.

The file is checked against the plan JSON schema and the phase ordering is
re-verified: every dependency scheduled in the plan must sit in an earlier
phase than its dependents, and no entity may be scheduled twice.`,
	Example: `  # Export a plan, then check it
  docshift plan --output json > plan.json
  docshift validate plan.json`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	plan, err := planner.LoadPlan(args[0])
	if err != nil {
		log.Fatalf("Plan file is invalid: %v", err)
	}

	fmt.Printf("✅ Plan is valid: %d entities across %d phases, %d records to migrate\n",
		plan.EntitiesToMigrate, plan.TotalPhases, plan.RecordsToMigrate)
}
