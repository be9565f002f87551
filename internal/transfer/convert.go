package transfer

import (
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// rowScanner converts sql.Rows into BSON documents keyed by column name.
type rowScanner struct {
	columns []string
	values  []any
}

func newRowScanner(rows *sql.Rows) (*rowScanner, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	s := &rowScanner{
		columns: cols,
		values:  make([]any, len(cols)),
	}
	for i := range s.values {
		s.values[i] = new(any)
	}
	return s, nil
}

func (s *rowScanner) Scan(rows *sql.Rows) (bson.M, error) {
	if err := rows.Scan(s.values...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	doc := make(bson.M, len(s.columns))
	for i, col := range s.columns {
		doc[col] = normalizeValue(*(s.values[i].(*any)))
	}
	return doc, nil
}

// normalizeValue maps raw driver values onto types the BSON encoder stores
// the way a document consumer expects. Text columns arrive as []byte from
// both lib/pq and the sqlite driver and must land as strings, not binary.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
