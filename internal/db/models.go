package db

import (
	"database/sql"
	"time"
)

// LanguagePattern is a row of the embedded pattern catalog.
type LanguagePattern struct {
	ID        int64
	Sociolect string
	Text      string
	TextHash  string
	Category  string
	Context   string
	VectorID  sql.NullInt64
	CreatedAt time.Time
}

// Explanation is a recorded successful pipeline result.
type Explanation struct {
	ID          int64
	RunID       string
	Topic       string
	Sociolect   string
	MemeName    string
	Explanation string
	Sources     string // JSON array of URLs
	CreatedAt   time.Time
}

// CountBySociolectRow is one row of CountPatternsBySociolect.
type CountBySociolectRow struct {
	Sociolect string
	Count     int64
}
