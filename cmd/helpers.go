package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/juju/collections/set"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docshift/docshift/catalog"
	catalogmongo "github.com/docshift/docshift/catalog/mongo"
	"github.com/docshift/docshift/catalog/postgres"
	"github.com/docshift/docshift/catalog/sqlfile"
	"github.com/docshift/docshift/catalog/sqlite"
	"github.com/docshift/docshift/internal/config"
	"github.com/docshift/docshift/internal/graph"
	"github.com/docshift/docshift/internal/planner"
	"github.com/docshift/docshift/internal/strategy"
	"github.com/docshift/docshift/internal/syncstate"
)

// connections holds the resolved source and target endpoints for one
// command invocation.
type connections struct {
	env      *config.ResolvedEnvironment
	source   string
	target   string
	targetDB string
}

// resolveConnections applies flag overrides on top of the environment from
// docshift.toml and .env.<name>. The target falls back to built-in
// defaults; the source never does.
func resolveConnections(cfg *config.Config, envName, sourceFlag, targetFlag, targetDBFlag string) (*connections, error) {
	env, err := config.ResolveEnvironment(cfg, envName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve environment: %w", err)
	}

	c := &connections{
		env:      env,
		source:   env.SourceURL,
		target:   env.TargetURL,
		targetDB: env.TargetDB,
	}
	if s := strings.TrimSpace(sourceFlag); s != "" {
		c.source = s
	}
	if s := strings.TrimSpace(targetFlag); s != "" {
		c.target = s
	}
	if s := strings.TrimSpace(targetDBFlag); s != "" {
		c.targetDB = s
	}

	if c.source == "" {
		return nil, fmt.Errorf("no source database configured: provide --source or configure environment %q in docshift.toml or .env.%s", env.Name, env.Name)
	}
	return c, nil
}

// openSource opens the source catalog for a connection string or a path to
// SQL DDL files. The returned *sql.DB is nil for DDL sources, which can be
// planned against but not migrated from.
func openSource(ctx context.Context, connStr string) (catalog.Source, *sql.DB, error) {
	if !catalog.IsConnectionString(connStr) {
		return sqlfile.NewReader(connStr), nil, nil
	}

	driverType := catalog.DetectDriver(connStr)
	dsn := connStr
	if driverType == "sqlite" {
		dsn = catalog.NormalizeSQLitePath(connStr)
	}

	db, err := sql.Open(catalog.SQLDriverName(driverType), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to source database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping source database: %w", err)
	}

	if driverType == "postgres" {
		return postgres.NewReader(db), db, nil
	}
	// libsql speaks the sqlite catalog surface
	return sqlite.NewReader(db), db, nil
}

// openTarget connects to the target document store and returns the
// database handle plus a disconnect func.
func openTarget(ctx context.Context, uri, dbName string) (*mongo.Database, func(), error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to target database: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping target database: %w", err)
	}
	cleanup := func() { _ = client.Disconnect(context.Background()) }
	return client.Database(dbName), cleanup, nil
}

func targetCatalog(db *mongo.Database) catalog.Target {
	return catalogmongo.NewReader(db)
}

func thresholdsFromConfig(cfg *config.Config) strategy.Thresholds {
	return strategy.Thresholds{
		EmbedMaxRatio: cfg.Strategy.EmbedMaxRatio,
		EmbedMaxRows:  cfg.Strategy.EmbedMaxRows,
	}
}

// buildPlan runs one full analysis: fetch both catalogs, compare, build
// the dependency graph, classify, and assemble the phased plan.
func buildPlan(ctx context.Context, src catalog.Source, tgt catalog.Target, thresholds strategy.Thresholds) (*planner.Plan, *syncstate.DatabaseState, error) {
	source, target, err := syncstate.Fetch(ctx, src, tgt)
	if err != nil {
		return nil, nil, err
	}
	state := syncstate.Compare(source, target)

	g, err := graph.Build(source)
	if err != nil {
		return nil, nil, err
	}

	synced := set.NewStrings(state.SyncedNames()...)
	phases, err := planner.ComputePhases(g, synced)
	if err != nil {
		return nil, nil, err
	}

	classes := strategy.Classify(source, g, thresholds)
	return planner.Assemble(phases, g, state, classes), state, nil
}
