package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"fileshare/internal/database/migrations"
	"fileshare/internal/fileshare"
)

// timeLayout renders timestamps at fixed width in UTC with an explicit
// offset, so text ordering in SQL matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000-07:00"

const fileColumns = `id, filename, original_filename, file_size, mime_type, storage_path, uploaded_at, description, parent_directory_id`

const directoryColumns = `id, name, parent_id, created_at, updated_at`

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteDatabase implements fileshare.MetadataStore using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database named by databaseURL with a pool of
// at most maxConns connections. The schema is not touched; call Migrate.
func NewSQLiteDatabase(databaseURL string, maxConns int) (*SQLiteDatabase, error) {
	dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := OpenConnection(dsn, maxConns)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{db: db, path: dsn.Path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// File operations

func (s *SQLiteDatabase) InsertFile(ctx context.Context, file *fileshare.File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.Filename,
		file.OriginalFilename,
		file.FileSize,
		nullString(file.MimeType),
		file.StoragePath,
		formatTime(file.UploadedAt),
		nullString(file.Description),
		nullString(file.ParentDirectoryID),
	)
	if err != nil {
		return fmt.Errorf("inserting file %s: %w", file.ID, classify(err))
	}
	return nil
}

func (s *SQLiteDatabase) FindFile(ctx context.Context, id string) (*fileshare.File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	return file, nil
}

func (s *SQLiteDatabase) ListFiles(ctx context.Context, parentID *string) ([]*fileshare.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE parent_directory_id IS NULL ORDER BY uploaded_at DESC, rowid DESC`
	var args []any
	if parentID != nil {
		query = `SELECT ` + fileColumns + ` FROM files WHERE parent_directory_id = ? ORDER BY uploaded_at DESC, rowid DESC`
		args = append(args, *parentID)
	}

	files, err := queryFiles(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return files, nil
}

func (s *SQLiteDatabase) ListSubtreeFiles(ctx context.Context, directoryID string) ([]*fileshare.File, error) {
	// UNION rather than UNION ALL: a corrupt parent chain terminates instead of looping.
	query := `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM directories WHERE id = ?
			UNION
			SELECT d.id FROM directories d JOIN subtree s ON d.parent_id = s.id
		)
		SELECT ` + fileColumns + ` FROM files
		WHERE parent_directory_id IN (SELECT id FROM subtree)
		ORDER BY uploaded_at, rowid`

	files, err := queryFiles(ctx, s.db, query, directoryID)
	if err != nil {
		return nil, fmt.Errorf("listing subtree files: %w", err)
	}
	return files, nil
}

func (s *SQLiteDatabase) ListStoredFilenames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM files`)
	if err != nil {
		return nil, fmt.Errorf("listing stored filenames: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning stored filename: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing storage paths: %w", err)
	}
	return paths, nil
}

func (s *SQLiteDatabase) UpdateFileParent(ctx context.Context, id string, parentID *string) (*fileshare.File, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE files SET parent_directory_id = ? WHERE id = ? RETURNING `+fileColumns,
		nullString(parentID), id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating file parent: %w", classify(err))
	}
	return file, nil
}

func (s *SQLiteDatabase) DeleteFile(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Directory operations

func (s *SQLiteDatabase) InsertDirectory(ctx context.Context, directory *fileshare.Directory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO directories (`+directoryColumns+`) VALUES (?, ?, ?, ?, ?)`,
		directory.ID,
		directory.Name,
		nullString(directory.ParentID),
		formatTime(directory.CreatedAt),
		formatTime(directory.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting directory %s: %w", directory.ID, classify(err))
	}
	return nil
}

func (s *SQLiteDatabase) FindDirectory(ctx context.Context, id string) (*fileshare.Directory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+directoryColumns+` FROM directories WHERE id = ?`, id)
	directory, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding directory: %w", err)
	}
	return directory, nil
}

func (s *SQLiteDatabase) ListDirectories(ctx context.Context, parentID *string) ([]*fileshare.Directory, error) {
	query := `SELECT ` + directoryColumns + ` FROM directories WHERE parent_id IS NULL ORDER BY name, created_at`
	var args []any
	if parentID != nil {
		query = `SELECT ` + directoryColumns + ` FROM directories WHERE parent_id = ? ORDER BY name, created_at`
		args = append(args, *parentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	defer rows.Close()

	var directories []*fileshare.Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning directory: %w", err)
		}
		directories = append(directories, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	return directories, nil
}

func (s *SQLiteDatabase) DirectoryStats(ctx context.Context, id string) (fileshare.DirectoryStats, error) {
	var stats fileshare.DirectoryStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM files WHERE parent_directory_id = ?`, id,
	).Scan(&stats.FileCount, &stats.TotalSize)
	if err != nil {
		return fileshare.DirectoryStats{}, fmt.Errorf("aggregating directory stats: %w", err)
	}
	return stats, nil
}

// MoveDirectory checks for cycles and applies the move in one write
// transaction, so two concurrent moves cannot together close a loop.
func (s *SQLiteDatabase) MoveDirectory(ctx context.Context, id string, parentID *string, updatedAt time.Time) (*fileshare.Directory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if parentID != nil {
		if err := checkNotAncestor(ctx, tx, id, *parentID); err != nil {
			return nil, err
		}
	}

	row := tx.QueryRowContext(ctx,
		`UPDATE directories SET parent_id = ?, updated_at = ? WHERE id = ? RETURNING `+directoryColumns,
		nullString(parentID), formatTime(updatedAt), id)
	directory, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating directory parent: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return directory, nil
}

// checkNotAncestor walks up from parentID following parent_id and fails with
// ErrInvalidMove if it reaches id. The walk is bounded by the directory count;
// a longer chain can only be a cycle already at rest, which is corruption.
func checkNotAncestor(ctx context.Context, q dbtx, id, parentID string) error {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM directories`).Scan(&total); err != nil {
		return fmt.Errorf("counting directories: %w", err)
	}

	current := parentID
	for steps := 0; ; steps++ {
		if current == id {
			return fmt.Errorf("moving directory %s under %s: %w", id, parentID, fileshare.ErrInvalidMove)
		}
		if steps > total {
			return fmt.Errorf("ancestor chain of directory %s exceeds %d directories: corrupt hierarchy", parentID, total)
		}

		var next sql.NullString
		err := q.QueryRowContext(ctx, `SELECT parent_id FROM directories WHERE id = ?`, current).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !next.Valid) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walking ancestors: %w", err)
		}
		current = next.String
	}
}

// DeleteDirectory removes the directory's direct files and then the
// directory itself in one transaction. Descendant directories and their files
// are removed by the ON DELETE CASCADE foreign keys.
func (s *SQLiteDatabase) DeleteDirectory(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE parent_directory_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting directory files: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM directories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting directory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return n > 0, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// DB exposes the connection pool for instrumentation.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// MigrationStatus reports the schema version.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Ping verifies a connection can be borrowed from the pool.
func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// classify marks id collisions as fileshare.ErrConflict.
func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %w", fileshare.ErrConflict, err)
		}
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*fileshare.File, error) {
	var (
		f           fileshare.File
		mimeType    sql.NullString
		description sql.NullString
		parentID    sql.NullString
		uploadedAt  string
	)
	err := row.Scan(
		&f.ID,
		&f.Filename,
		&f.OriginalFilename,
		&f.FileSize,
		&mimeType,
		&f.StoragePath,
		&uploadedAt,
		&description,
		&parentID,
	)
	if err != nil {
		return nil, err
	}

	if f.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return nil, fmt.Errorf("file %s uploaded_at: %w", f.ID, err)
	}
	f.MimeType = stringPtr(mimeType)
	f.Description = stringPtr(description)
	f.ParentDirectoryID = stringPtr(parentID)
	return &f, nil
}

func queryFiles(ctx context.Context, q dbtx, query string, args ...any) ([]*fileshare.File, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*fileshare.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func scanDirectory(row scanner) (*fileshare.Directory, error) {
	var (
		d         fileshare.Directory
		parentID  sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&d.ID, &d.Name, &parentID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("directory %s created_at: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("directory %s updated_at: %w", d.ID, err)
	}
	d.ParentID = stringPtr(parentID)
	return &d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// Compile-time check that SQLiteDatabase implements fileshare.MetadataStore
var _ fileshare.MetadataStore = (*SQLiteDatabase)(nil)
