package catalog

import "strings"

// IsConnectionString checks if a string looks like a database connection string
func IsConnectionString(s string) bool {
	lower := strings.ToLower(s)

	// Check for common connection string prefixes
	if strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.HasPrefix(lower, "libsql://") ||
		strings.HasPrefix(lower, "sqlite://") ||
		strings.HasPrefix(lower, "file:") {
		return true
	}

	// Bare SQLite file paths count as connection strings too
	if strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3") {
		return true
	}

	// :memory: is a SQLite in-memory database
	if lower == ":memory:" {
		return true
	}

	return false
}

// DetectDriver determines the logical driver type from a connection string
func DetectDriver(connStr string) string {
	lower := strings.ToLower(connStr)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "libsql://"):
		return "libsql"
	default:
		return "sqlite"
	}
}

// SQLDriverName maps a logical driver type to the registered database/sql
// driver name
func SQLDriverName(driverType string) string {
	switch driverType {
	case "postgres", "postgresql":
		return "postgres"
	case "libsql":
		return "libsql"
	default:
		// modernc.org/sqlite registers as "sqlite"
		return "sqlite"
	}
}

// NormalizeSQLitePath strips the sqlite:// prefix so the path can be handed
// to sql.Open directly. file: URLs and bare paths pass through unchanged.
func NormalizeSQLitePath(connStr string) string {
	lower := strings.ToLower(connStr)
	if strings.HasPrefix(lower, "sqlite://") {
		return connStr[len("sqlite://"):]
	}
	return connStr
}
