package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/spf13/cobra"

	"github.com/docshift/docshift/internal/config"
	"github.com/docshift/docshift/internal/session"
	"github.com/docshift/docshift/internal/transfer"
	"github.com/docshift/docshift/internal/tui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate entities into the target document store, one at a time",
	Long: `Migrate entities from the relational source into the target document
store under operator control.

By default an interactive terminal UI walks the phased plan: it offers the
entities whose dependencies are already migrated, executes the selection,
re-checks both databases, and asks whether to continue. Validation refuses
selections whose dependencies are not migrated yet, and a failed entity
stays selectable for retry.`,
	Example: `  # Interactive migration for the default environment
  docshift migrate

  # Line-mode prompts instead of the full-screen UI
  docshift migrate --plain

  # Migrate one entity without the interactive loop
  docshift migrate --entity film --yes`,
	Run: runMigrate,
}

var (
	migrateEnvironment string
	migrateSource      string
	migrateTarget      string
	migrateTargetDB    string
	migrateEntity      string
	migrateYes         bool
	migratePlain       bool
	migrateBatchSize   int
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateEnvironment, "environment", "", "Named environment from docshift.toml (defaults to config default)")
	migrateCmd.Flags().StringVar(&migrateSource, "source", "", "Source connection string (overrides environment)")
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "", "Target MongoDB URI (overrides environment)")
	migrateCmd.Flags().StringVar(&migrateTargetDB, "target-db", "", "Target database name (overrides environment)")
	migrateCmd.Flags().StringVar(&migrateEntity, "entity", "", "Migrate a single entity and exit")
	migrateCmd.Flags().BoolVar(&migrateYes, "yes", false, "Skip the confirmation prompt (with --entity)")
	migrateCmd.Flags().BoolVar(&migratePlain, "plain", false, "Line-mode prompts instead of the full-screen UI")
	migrateCmd.Flags().IntVar(&migrateBatchSize, "batch-size", 0, "Documents per insert batch (overrides docshift.toml)")
}

func runMigrate(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	conns, err := resolveConnections(cfg, migrateEnvironment, migrateSource, migrateTarget, migrateTargetDB)
	if err != nil {
		log.Fatalf("Failed to resolve connections: %v", err)
	}

	ctx := context.Background()

	src, db, err := openSource(ctx, conns.source)
	if err != nil {
		log.Fatalf("Failed to open source: %v", err)
	}
	if db == nil {
		log.Fatalf("Cannot migrate from SQL DDL files: records live only in a database. Provide a connection string via --source or the environment.")
	}
	defer func() { _ = db.Close() }()

	targetDB, cleanup, err := openTarget(ctx, conns.target, conns.targetDB)
	if err != nil {
		log.Fatalf("Failed to open target: %v", err)
	}
	defer cleanup()

	batchSize := cfg.Transfer.BatchSize
	if migrateBatchSize > 0 {
		batchSize = migrateBatchSize
	}

	sessionCfg := session.Config{
		Source:     src,
		Target:     targetCatalog(targetDB),
		Executor:   transfer.NewBulk(db, targetDB, batchSize),
		Thresholds: thresholdsFromConfig(cfg),
	}

	switch {
	case migrateEntity != "":
		sessionCfg.Notify = printEvent
		runSingleEntity(ctx, session.New(sessionCfg), migrateEntity)
	case migratePlain:
		sessionCfg.Notify = printEvent
		runPlainLoop(ctx, session.New(sessionCfg))
	default:
		if err := tui.Run(sessionCfg, conns.env.Name); err != nil {
			log.Fatalf("Migration session failed: %v", err)
		}
	}
}

// printEvent writes session progress for the non-interactive modes. Failures
// are reported through the returned errors, not here.
func printEvent(e session.Event) {
	switch e.Type {
	case session.EventExecutionStarted:
		fmt.Printf("Migrating %s...\n", e.Entity)
	case session.EventExecutionResult:
		if e.Result != nil && e.Result.Success {
			fmt.Printf("✅ %s: %d documents in %s\n",
				e.Result.Collection, e.Result.Transferred, e.Result.Duration.Round(time.Millisecond))
		}
	case session.EventStateRefreshed:
		if e.State != nil {
			fmt.Printf("Database state: %s\n", e.State.Overall)
		}
	}
}

// runSingleEntity migrates one entity and exits, for scripted use.
func runSingleEntity(ctx context.Context, s *session.Session, name string) {
	if err := s.Refresh(ctx); err != nil {
		log.Fatalf("Failed to analyze databases: %v", err)
	}

	entity, ok := s.Plan().Entity(name)
	if !ok {
		log.Fatalf("Entity %q is not part of the source catalog", name)
	}

	if !migrateYes {
		fmt.Printf("About to migrate %s (%d records, %s).\n", entity.Name, entity.RecordCount, entity.Strategy)
		fmt.Print("Continue? (yes/no): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "yes" && response != "y" {
			fmt.Println("Cancelled")
			return
		}
	}

	if err := s.Select(ctx, name); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	_ = s.Continue(false)
}

// runPlainLoop drives the selection loop over stdin prompts.
func runPlainLoop(ctx context.Context, s *session.Session) {
	if err := s.Refresh(ctx); err != nil {
		log.Fatalf("Failed to analyze databases: %v", err)
	}

	for s.State() == session.StateAwaitingSelection {
		if !printPending(s) {
			fmt.Println("✅ All entities are in sync!")
			_ = s.Quit()
			break
		}

		fmt.Print("Entity to migrate (r to refresh, q to quit): ")
		var response string
		if _, err := fmt.Scanln(&response); err != nil || response == "q" {
			_ = s.Quit()
			break
		}
		if response == "r" {
			if err := s.Refresh(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Refresh failed: %v\n", err)
			}
			continue
		}

		if err := s.Select(ctx, response); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			continue
		}

		fmt.Print("Migrate another entity? (yes/no): ")
		var cont string
		_, _ = fmt.Scanln(&cont)
		if cont == "yes" || cont == "y" {
			if err := s.Continue(true); err != nil {
				log.Fatalf("Failed to continue the session: %v", err)
			}
			continue
		}
		_ = s.Continue(false)
	}

	if migrated := s.MigratedNames(); len(migrated) > 0 {
		fmt.Printf("Migrated this session: %s\n", strings.Join(migrated, ", "))
	}
}

// printPending lists the entities still to migrate and reports whether any
// remain.
func printPending(s *session.Session) bool {
	plan := s.Plan()
	if plan == nil {
		return false
	}

	migrated := set.NewStrings(s.MigratedNames()...)
	selectable := set.NewStrings(s.Selectable()...)

	pending := false
	fmt.Println()
	for _, phase := range plan.Phases {
		for _, e := range phase.Entities {
			if !e.NeedsMigration || migrated.Contains(e.Name) {
				continue
			}
			pending = true
			if selectable.Contains(e.Name) {
				fmt.Printf("  %-24s %10d records\n", e.Name, e.RecordCount)
			} else {
				missing := set.NewStrings(e.Dependencies...).Difference(migrated).SortedValues()
				fmt.Printf("  %-24s %10d records   blocked by: %s\n",
					e.Name, e.RecordCount, strings.Join(missing, ", "))
			}
		}
	}
	fmt.Println()
	return pending
}
