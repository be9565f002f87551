package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/docshift/docshift/internal/config"
)

// changeToTempDir keeps resolveConnections away from any docshift.toml or
// .env files in the working tree.
func changeToTempDir(t *testing.T) {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(original); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
}

func TestResolveConnections_FlagOverrides(t *testing.T) {
	changeToTempDir(t)

	cfg := &config.Config{
		SourceURL: "postgres://config-host/db",
		TargetURL: "mongodb://config-host:27017",
		TargetDB:  "configdb",
	}

	conns, err := resolveConnections(cfg, "", "flag.db", "mongodb://flag-host:27017", "flagdb")
	if err != nil {
		t.Fatalf("resolveConnections failed: %v", err)
	}

	if conns.source != "flag.db" {
		t.Errorf("Expected flag source to win, got %q", conns.source)
	}
	if conns.target != "mongodb://flag-host:27017" {
		t.Errorf("Expected flag target to win, got %q", conns.target)
	}
	if conns.targetDB != "flagdb" {
		t.Errorf("Expected flag target db to win, got %q", conns.targetDB)
	}
}

func TestResolveConnections_EnvironmentValues(t *testing.T) {
	changeToTempDir(t)

	cfg := &config.Config{
		Environments: map[string]config.EnvironmentConfig{
			"staging": {
				SourceURL: "postgres://staging-host/pagila",
				TargetURL: "mongodb://staging-host:27017",
				TargetDB:  "pagila",
			},
		},
	}

	conns, err := resolveConnections(cfg, "staging", "", "", "")
	if err != nil {
		t.Fatalf("resolveConnections failed: %v", err)
	}

	if conns.source != "postgres://staging-host/pagila" {
		t.Errorf("Expected environment source, got %q", conns.source)
	}
	if conns.targetDB != "pagila" {
		t.Errorf("Expected environment target db, got %q", conns.targetDB)
	}
	if conns.env.Name != "staging" {
		t.Errorf("Expected environment name staging, got %q", conns.env.Name)
	}
}

func TestResolveConnections_MissingSource(t *testing.T) {
	changeToTempDir(t)

	_, err := resolveConnections(&config.Config{}, "", "", "", "")
	if err == nil {
		t.Fatal("Expected an error when no source is configured")
	}
	if !strings.Contains(err.Error(), "no source database configured") {
		t.Errorf("Expected missing-source error, got %v", err)
	}
}

func TestOpenSource_DDLPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.sql")
	ddl := "CREATE TABLE actor (actor_id integer PRIMARY KEY);"
	if err := os.WriteFile(path, []byte(ddl), 0o644); err != nil {
		t.Fatalf("Failed to write DDL file: %v", err)
	}

	src, db, err := openSource(context.Background(), path)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	if db != nil {
		t.Error("Expected no sql.DB for a DDL source")
	}

	entities, err := src.Entities(context.Background())
	if err != nil {
		t.Fatalf("Entities failed: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "actor" {
		t.Errorf("Expected actor entity from DDL, got %+v", entities)
	}
}

func TestOpenSource_SQLiteMemory(t *testing.T) {
	src, db, err := openSource(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	if db == nil {
		t.Fatal("Expected a sql.DB for a connection string source")
	}
	defer func() { _ = db.Close() }()

	entities, err := src.Entities(context.Background())
	if err != nil {
		t.Fatalf("Entities failed: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected empty catalog, got %+v", entities)
	}
}

func TestThresholdsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Strategy: config.StrategyConfig{EmbedMaxRatio: 4.5, EmbedMaxRows: 250},
	}

	thresholds := thresholdsFromConfig(cfg)
	if thresholds.EmbedMaxRatio != 4.5 {
		t.Errorf("Expected ratio 4.5, got %v", thresholds.EmbedMaxRatio)
	}
	if thresholds.EmbedMaxRows != 250 {
		t.Errorf("Expected rows 250, got %v", thresholds.EmbedMaxRows)
	}
}
