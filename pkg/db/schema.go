package db

// Schema defines the conversion history table. One row per submitted image,
// keyed by the run that converted it.
const Schema = `
CREATE TABLE IF NOT EXISTS conversions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    source_name TEXT NOT NULL,
    media_type TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('pending', 'encoding', 'submitting', 'normalizing', 'ready', 'failed')),
    result_filename TEXT,
    error_kind TEXT,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status);
CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at);
`

// Status constants
const (
	StatusPending     = "pending"
	StatusEncoding    = "encoding"
	StatusSubmitting  = "submitting"
	StatusNormalizing = "normalizing"
	StatusReady       = "ready"
	StatusFailed      = "failed"
)

// InMemory keeps the history for the lifetime of the process only.
const InMemory = ":memory:"

// Conversion is one conversion attempt.
type Conversion struct {
	ID             int64
	RunID          string
	SourceName     string
	MediaType      string
	Size           int64
	Status         string
	ResultFilename string
	ErrorKind      string
	ErrorMessage   string
	CreatedAt      string
	UpdatedAt      string
}
