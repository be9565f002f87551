package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docshift/docshift/internal/config"
	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/syncstate"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Analyze both databases and print the phased migration plan",
	Long: `Analyze the source and target catalogs and print the phased migration plan.

The source can be:
  • A PostgreSQL, SQLite, or libSQL connection string (introspected live)
  • A path to a SQL DDL file or directory (planned offline, row counts zero)

Entities are grouped into phases so that every foreign key dependency is
migrated before its dependents. The JSON export can be archived and
re-checked later with docshift validate.`,
	Example: `  # Plan against the default environment from docshift.toml
  docshift plan

  # Plan a named environment
  docshift plan --environment staging

  # Plan from DDL files without touching the source database
  docshift plan --source ./schema --target mongodb://localhost:27017

  # Export the plan for review or validation
  docshift plan --output json > plan.json`,
	Run: runPlan,
}

var (
	planEnvironment string
	planSource      string
	planTarget      string
	planTargetDB    string
	planOutput      string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planEnvironment, "environment", "", "Named environment from docshift.toml (defaults to config default)")
	planCmd.Flags().StringVar(&planSource, "source", "", "Source connection string or DDL path (overrides environment)")
	planCmd.Flags().StringVar(&planTarget, "target", "", "Target MongoDB URI (overrides environment)")
	planCmd.Flags().StringVar(&planTargetDB, "target-db", "", "Target database name (overrides environment)")
	planCmd.Flags().StringVar(&planOutput, "output", "", "Output format: json")
}

func runPlan(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	conns, err := resolveConnections(cfg, planEnvironment, planSource, planTarget, planTargetDB)
	if err != nil {
		log.Fatalf("Failed to resolve connections: %v", err)
	}

	ctx := context.Background()

	src, db, err := openSource(ctx, conns.source)
	if err != nil {
		log.Fatalf("Failed to open source: %v", err)
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	targetDB, cleanup, err := openTarget(ctx, conns.target, conns.targetDB)
	if err != nil {
		log.Fatalf("Failed to open target: %v", err)
	}
	defer cleanup()

	plan, state, err := buildPlan(ctx, src, targetCatalog(targetDB), thresholdsFromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to build migration plan: %v", err)
	}

	if planOutput == "json" {
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode plan: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	printPlan(plan, state)
}

func printPlan(plan *planner.Plan, state *syncstate.DatabaseState) {
	fmt.Println(plan.Summary)

	for _, phase := range plan.Phases {
		fmt.Printf("\nPhase %d: %s\n", phase.Number, phase.Name)
		for _, e := range phase.Entities {
			marker := " "
			if !e.NeedsMigration {
				marker = "✓"
			}
			line := fmt.Sprintf("  %s %-24s %10d records   %s", marker, e.Name, e.RecordCount, e.Strategy)
			if e.Parent != "" {
				line += fmt.Sprintf(" into %s", e.Parent)
			}
			if len(e.Dependencies) > 0 {
				line += fmt.Sprintf("   after: %s", strings.Join(e.Dependencies, ", "))
			}
			fmt.Println(line)
		}
	}

	if len(plan.Warnings) > 0 {
		fmt.Println()
		for _, w := range plan.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
	}

	fmt.Printf("\n%d entities across %d phases, %d records to migrate. Database state: %s\n",
		plan.EntitiesToMigrate, plan.TotalPhases, plan.RecordsToMigrate, state.Overall)
}
