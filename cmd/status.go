package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docshift/docshift/internal/config"
	"github.com/docshift/docshift/internal/syncstate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare source and target catalogs and report sync state",
	Long: `Compare the source and target catalogs entity by entity and report
which entities are synced, partially migrated, or missing on either side.`,
	Example: `  # Status for the default environment
  docshift status

  # Status for a named environment
  docshift status --environment production

  # Machine-readable report
  docshift status --output json`,
	Run: runStatus,
}

var (
	statusEnvironment string
	statusSource      string
	statusTarget      string
	statusTargetDB    string
	statusOutput      string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusEnvironment, "environment", "", "Named environment from docshift.toml (defaults to config default)")
	statusCmd.Flags().StringVar(&statusSource, "source", "", "Source connection string or DDL path (overrides environment)")
	statusCmd.Flags().StringVar(&statusTarget, "target", "", "Target MongoDB URI (overrides environment)")
	statusCmd.Flags().StringVar(&statusTargetDB, "target-db", "", "Target database name (overrides environment)")
	statusCmd.Flags().StringVar(&statusOutput, "output", "", "Output format: json")
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	conns, err := resolveConnections(cfg, statusEnvironment, statusSource, statusTarget, statusTargetDB)
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

	source, target, err := syncstate.Fetch(ctx, src, targetCatalog(targetDB))
	if err != nil {
		log.Fatalf("Failed to read catalogs: %v", err)
	}
	state := syncstate.Compare(source, target)

	if statusOutput == "json" {
		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode state: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	printState(state)
}

func printState(state *syncstate.DatabaseState) {
	fmt.Printf("%-24s %12s %12s   %s\n", "ENTITY", "SOURCE", "TARGET", "STATUS")

	printGroup := func(entities []syncstate.EntityState) {
		for _, e := range entities {
			fmt.Printf("%-24s %12d %12d   %s\n", e.Name, e.SourceCount, e.TargetCount, e.Status)
		}
	}
	printGroup(state.Common)
	printGroup(state.SourceOnly)
	printGroup(state.TargetOnly)

	fmt.Printf("\nTotal records: %d source, %d target. Overall: %s\n",
		state.TotalSourceRecords, state.TotalTargetRecords, state.Overall)
}
