package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultEnvironmentName = "local"
	defaultTargetURL       = "mongodb://localhost:27017"
	defaultTargetDB        = "docshift"
)

// ResolvedEnvironment represents a fully-resolved environment with concrete
// connection values for both sides of the migration.
type ResolvedEnvironment struct {
	Name       string
	SourceURL  string
	TargetURL  string
	TargetDB   string
	DotenvPath string
	FromConfig bool
	FromDotenv bool
}

// ResolveEnvironment resolves a named environment into concrete connection
// strings. Values come from docshift.toml first and a .env.<name> file
// second; the dotenv file wins where both define a value. The source URL
// has no default and stays empty when nothing configures it.
func ResolveEnvironment(config *Config, name string) (*ResolvedEnvironment, error) {
	envName := strings.TrimSpace(name)
	if envName == "" {
		if config != nil && config.DefaultEnvironment != "" {
			envName = config.DefaultEnvironment
		} else {
			envName = defaultEnvironmentName
		}
	}

	var (
		envConfig EnvironmentConfig
		envExists bool
	)
	if config != nil && config.Environments != nil {
		if cfg, ok := config.Environments[envName]; ok {
			envConfig = cfg
			envExists = true
		}
	}

	if config != nil {
		if config.SourceURL != "" && envConfig.SourceURL == "" {
			envConfig.SourceURL = config.SourceURL
		}
		if config.TargetURL != "" && envConfig.TargetURL == "" {
			envConfig.TargetURL = config.TargetURL
		}
		if config.TargetDB != "" && envConfig.TargetDB == "" {
			envConfig.TargetDB = config.TargetDB
		}
	}

	resolved := &ResolvedEnvironment{
		Name:      envName,
		SourceURL: envConfig.SourceURL,
		TargetURL: envConfig.TargetURL,
		TargetDB:  envConfig.TargetDB,
	}
	if envExists {
		resolved.FromConfig = true
	}

	dotenvFileName := ".env." + envName
	baseDir := ""
	if config != nil {
		baseDir = config.ConfigDir()
	}
	if baseDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			baseDir = cwd
		}
	}
	if baseDir != "" {
		resolved.DotenvPath = filepath.Join(baseDir, dotenvFileName)
	} else {
		resolved.DotenvPath = dotenvFileName
	}

	if info, err := os.Stat(resolved.DotenvPath); err == nil && !info.IsDir() {
		values, err := godotenv.Read(resolved.DotenvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolved.DotenvPath, err)
		}
		resolved.FromDotenv = true

		if value := values["SOURCE_URL"]; value != "" {
			resolved.SourceURL = value
		}
		if value := values["TARGET_URL"]; value != "" {
			resolved.TargetURL = value
		}
		if value := values["TARGET_DB"]; value != "" {
			resolved.TargetDB = value
		}

		// Database-specific variables cover environments written before the
		// generic names existed.
		if resolved.SourceURL == "" {
			if value := values["POSTGRES_URL"]; value != "" {
				resolved.SourceURL = value
			}
		}
		if resolved.SourceURL == "" {
			if value := values["SQLITE_DB_PATH"]; value != "" {
				resolved.SourceURL = value
			}
		}
		if resolved.SourceURL == "" {
			if value := values["LIBSQL_URL"]; value != "" {
				if authToken := values["LIBSQL_AUTH_TOKEN"]; authToken != "" {
					resolved.SourceURL = fmt.Sprintf("%s?authToken=%s", value, authToken)
				} else {
					resolved.SourceURL = value
				}
			}
		}
		if resolved.TargetURL == "" {
			if value := values["MONGO_URL"]; value != "" {
				resolved.TargetURL = value
			}
		}
		if resolved.TargetDB == "" {
			if value := values["MONGO_DB"]; value != "" {
				resolved.TargetDB = value
			}
		}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to access %s: %w", resolved.DotenvPath, err)
	}

	if resolved.TargetURL == "" {
		resolved.TargetURL = defaultTargetURL
	}
	if resolved.TargetDB == "" {
		resolved.TargetDB = defaultTargetDB
	}

	if config != nil && len(config.Environments) > 0 && !envExists && !resolved.FromDotenv {
		return nil, fmt.Errorf("environment %q not defined in docshift.toml and %s not found", envName, resolved.DotenvPath)
	}

	return resolved, nil
}
