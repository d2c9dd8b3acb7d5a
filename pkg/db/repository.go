package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/excaliboard/excaliboard/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository records conversion attempts.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the history database. Use InMemory for a history that
// disappears with the process.
func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		dbPath = InMemory
	}
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new conversion record
func (r *Repository) Create(c *Conversion) error {
	slog.Info("database_create_conversion", "run_id", c.RunID, "source", c.SourceName, "status", c.Status)

	if c.Status == "" {
		c.Status = StatusPending
	}
	query := `
		INSERT INTO conversions (run_id, source_name, media_type, size, status, result_filename, error_kind, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		c.RunID, c.SourceName, c.MediaType, c.Size, c.Status,
		c.ResultFilename, c.ErrorKind, c.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "run_id", c.RunID, "error", err)
		return errors.Wrap(err, "failed to insert conversion")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "run_id", c.RunID, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	c.ID = id

	slog.Info("database_conversion_created", "run_id", c.RunID, "conversion_id", c.ID)
	return nil
}

const selectColumns = `
	SELECT id, run_id, source_name, media_type, size, status,
	       result_filename, error_kind, error_message, created_at, updated_at
	FROM conversions`

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(row scanner) (*Conversion, error) {
	var c Conversion
	var resultFilename, errorKind, errorMessage sql.NullString
	err := row.Scan(
		&c.ID, &c.RunID, &c.SourceName, &c.MediaType, &c.Size, &c.Status,
		&resultFilename, &errorKind, &errorMessage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ResultFilename = resultFilename.String
	c.ErrorKind = errorKind.String
	c.ErrorMessage = errorMessage.String
	return &c, nil
}

// GetByRunID retrieves a conversion by run id. It returns nil when there is
// no such run.
func (r *Repository) GetByRunID(runID string) (*Conversion, error) {
	slog.Debug("database_query_conversion", "run_id", runID)

	c, err := scanConversion(r.db.QueryRow(selectColumns+` WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		slog.Info("database_conversion_not_found", "run_id", runID)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "run_id", runID, "error", err)
		return nil, errors.Wrap(err, "failed to query conversion")
	}
	return c, nil
}

// UpdateStatus moves a run to status. errorKind and errorMessage are only
// meaningful for StatusFailed.
func (r *Repository) UpdateStatus(runID, status, errorKind, errorMessage string) error {
	slog.Info("database_update_status", "run_id", runID, "status", status)

	query := `
		UPDATE conversions
		SET status = ?, error_kind = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE run_id = ?
	`
	return r.exec(runID, "failed to update status", query, status, errorKind, errorMessage, runID)
}

// SetResult marks a run ready with the filename the service returned.
func (r *Repository) SetResult(runID, filename string) error {
	slog.Info("database_set_result", "run_id", runID, "filename", filename)

	query := `
		UPDATE conversions
		SET status = ?, result_filename = ?, error_kind = '', error_message = '', updated_at = CURRENT_TIMESTAMP
		WHERE run_id = ?
	`
	return r.exec(runID, "failed to set result", query, StatusReady, filename, runID)
}

func (r *Repository) exec(runID, context, query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		slog.Error("database_update_failed", "run_id", runID, "error", err)
		return errors.Wrap(err, context)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		slog.Error("database_rows_affected_failed", "run_id", runID, "error", err)
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_conversion_not_found_for_update", "run_id", runID)
		return fmt.Errorf("conversion not found: run_id=%s", runID)
	}
	return nil
}

// List retrieves all conversions, newest first.
func (r *Repository) List() ([]*Conversion, error) {
	slog.Debug("database_list_conversions")

	rows, err := r.db.Query(selectColumns + ` ORDER BY id DESC`)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list conversions")
	}
	defer rows.Close()

	var conversions []*Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		conversions = append(conversions, c)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Debug("database_list_complete", "conversion_count", len(conversions))
	return conversions, nil
}
