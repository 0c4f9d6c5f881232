package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// dbFile is the database file name inside the data directory.
const dbFile = "lorekeeper.db"

// Store is a SQLite database exposing the section and routing log stores.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database in dataDir and migrates it.
// If dataDir is empty, defaults to ~/.lorekeeper/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lorekeeper", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// WAL lets the MCP server read while an index rebuild writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SectionStore returns a SectionStore backed by this database.
func (s *Store) SectionStore() driven.SectionStore {
	return &sectionStore{db: s.db}
}

// RoutingLogStore returns a RoutingLogStore backed by this database.
func (s *Store) RoutingLogStore() driven.RoutingLogStore {
	return &routingLogStore{db: s.db}
}

// migrate runs all pending up migrations in version order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_sections.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Section Store ====================

type sectionStore struct {
	db *sql.DB
}

var _ driven.SectionStore = (*sectionStore)(nil)

const sectionColumns = `id, title, text, category, source_path, parent_id,
	hierarchy, metadata, embedding, embedding_model`

// SaveSections replaces the stored snapshot in one transaction.
func (s *sectionStore) SaveSections(ctx context.Context, sections []domain.Section) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections"); err != nil {
		return fmt.Errorf("clearing sections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (id, position, title, text, category, source_path, parent_id,
			hierarchy, metadata, embedding, embedding_model, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range sections {
		sec := &sections[i]
		hierarchy, err := json.Marshal(nonNilStrings(sec.Hierarchy))
		if err != nil {
			return fmt.Errorf("marshalling hierarchy of %q: %w", sec.ID, err)
		}
		metadata, err := json.Marshal(sec.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata of %q: %w", sec.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			sec.ID, i, sec.Title, sec.Text, string(sec.Category), sec.SourcePath, sec.ParentID,
			string(hierarchy), string(metadata), float32SliceToBytes(sec.Embedding),
			sec.EmbeddingModel, sec.ContentHash(),
		); err != nil {
			return fmt.Errorf("inserting section %q: %w", sec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sections: %w", err)
	}
	return nil
}

// LoadSections returns the stored snapshot in saved order.
func (s *sectionStore) LoadSections(ctx context.Context) ([]domain.Section, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sectionColumns+" FROM sections ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	sections := []domain.Section{}
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}
	return sections, nil
}

// GetSection returns one stored section.
func (s *sectionStore) GetSection(ctx context.Context, id string) (*domain.Section, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sectionColumns+" FROM sections WHERE id = ?", id)
	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %q: %w", id, domain.ErrNotFound)
	}
	return sec, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (*domain.Section, error) {
	var (
		sec                     domain.Section
		category                string
		hierarchyJSON, metaJSON string
		embeddingBlob           []byte
	)
	if err := row.Scan(&sec.ID, &sec.Title, &sec.Text, &category, &sec.SourcePath, &sec.ParentID,
		&hierarchyJSON, &metaJSON, &embeddingBlob, &sec.EmbeddingModel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning section: %w", err)
	}
	sec.Category = domain.Category(category)
	sec.Embedding = bytesToFloat32Slice(embeddingBlob)

	if err := json.Unmarshal([]byte(hierarchyJSON), &sec.Hierarchy); err != nil {
		return nil, fmt.Errorf("unmarshalling hierarchy of %q: %w", sec.ID, err)
	}
	if len(sec.Hierarchy) == 0 {
		sec.Hierarchy = nil
	}
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &sec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata of %q: %w", sec.ID, err)
		}
	}
	return &sec, nil
}

// ==================== Routing Log Store ====================

type routingLogStore struct {
	db *sql.DB
}

var _ driven.RoutingLogStore = (*routingLogStore)(nil)

// Record appends a routing record.
func (s *routingLogStore) Record(ctx context.Context, record *domain.RoutingRecord) error {
	decision, err := json.Marshal(record.Decision)
	if err != nil {
		return fmt.Errorf("marshalling decision: %w", err)
	}
	correct, err := json.Marshal(nonNilCategories(record.CorrectScopes))
	if err != nil {
		return fmt.Errorf("marshalling correct scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routing_log (id, query_text, decision, correct_scopes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.QueryText, string(decision), string(correct), record.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting routing record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *routingLogStore) List(ctx context.Context, limit int) ([]domain.RoutingRecord, error) {
	query := `SELECT id, query_text, decision, correct_scopes, created_at
		FROM routing_log ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying routing log: %w", err)
	}
	defer rows.Close()

	records := []domain.RoutingRecord{}
	for rows.Next() {
		var (
			rec                   domain.RoutingRecord
			decision, correctJSON string
			createdAt             int64
		)
		if err := rows.Scan(&rec.ID, &rec.QueryText, &decision, &correctJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning routing record: %w", err)
		}
		if err := json.Unmarshal([]byte(decision), &rec.Decision); err != nil {
			return nil, fmt.Errorf("unmarshalling decision of %q: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(correctJSON), &rec.CorrectScopes); err != nil {
			return nil, fmt.Errorf("unmarshalling correct scopes of %q: %w", rec.ID, err)
		}
		if len(rec.CorrectScopes) == 0 {
			rec.CorrectScopes = nil
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routing log: %w", err)
	}
	return records, nil
}

// Annotate stores the scopes an operator says should have been chosen.
func (s *routingLogStore) Annotate(ctx context.Context, id string, correct []domain.Category) error {
	data, err := json.Marshal(nonNilCategories(correct))
	if err != nil {
		return fmt.Errorf("marshalling correct scopes: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE routing_log SET correct_scopes = ? WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("annotating routing record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotating routing record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("routing record %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilCategories(c []domain.Category) []domain.Category {
	if c == nil {
		return []domain.Category{}
	}
	return c
}
