package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var Logger = logger.GetLogger("sqlite")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const defaultBusyTimeout = 5 * time.Second

// --------------------------------------------------------------------------
// Core SQLite database structure
// --------------------------------------------------------------------------

// sqliteImpl stores preferences in a single SQLite table
type sqliteImpl struct {
	db       *sql.DB
	path     string
	provider *goose.Provider
}

// Options configures the sqlite engine
type Options struct {
	Path        string        // Database file (":memory:" or "" = in-memory)
	BusyTimeout time.Duration // How long a locked database is retried (0 = 5s)
}

// DefaultOptions returns options for an in-memory database
func DefaultOptions() *Options {
	return &Options{
		Path:        MemoryPath,
		BusyTimeout: defaultBusyTimeout,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewSQLiteDB opens (or creates) the database and applies pending migrations.
func NewSQLiteDB(opts *Options) (db.PrefDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	path := opts.Path
	if path == "" {
		path = MemoryPath
	}
	busyTimeout := opts.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single connection: SQLite does not handle concurrent writers well and
	// an in-memory database only lives as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	provider, err := newMigrationProvider(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	for _, r := range results {
		Logger.Debugf("applied migration %s in %s", r.Source.Path, r.Duration)
	}

	Logger.Infof("sqlite database initialized at %s", path)
	return &sqliteImpl{db: sqlDB, path: path, provider: provider}, nil
}

// newMigrationProvider creates a goose provider for the embedded migrations
func newMigrationProvider(sqlDB *sql.DB) (*goose.Provider, error) {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	return provider, nil
}

// --------------------------------------------------------------------------
// Column mapping
// --------------------------------------------------------------------------

// columns is the row representation of a primitive. Floats keep their exact
// text form next to the REAL column because SQLite can not store NaN and
// may drop the sign of zero.
type columns struct {
	typ  string
	intV sql.NullInt64
	real sql.NullFloat64
	text sql.NullString
}

func toColumns(p codec.Primitive) (columns, error) {
	c := columns{typ: p.Type.String()}
	switch p.Type {
	case codec.PBool:
		var i int64
		if p.Bool {
			i = 1
		}
		c.intV = sql.NullInt64{Int64: i, Valid: true}
	case codec.PInt32, codec.PInt64:
		c.intV = sql.NullInt64{Int64: p.Int, Valid: true}
	case codec.PFloat32, codec.PFloat64:
		c.real = sql.NullFloat64{Float64: p.Float, Valid: !math.IsNaN(p.Float)}
		c.text = sql.NullString{String: p.Text(), Valid: true}
	case codec.PString:
		c.text = sql.NullString{String: p.Str, Valid: true}
	default:
		return c, fmt.Errorf("sqlite: can not store primitive of type %s", p.Type)
	}
	return c, nil
}

func fromColumns(c columns) (codec.Primitive, error) {
	t, err := codec.ParsePrimitiveType(c.typ)
	if err != nil {
		return codec.Primitive{}, err
	}

	p := codec.Primitive{Type: t}
	switch t {
	case codec.PBool:
		p.Bool = c.intV.Int64 != 0
	case codec.PInt32, codec.PInt64:
		p.Int = c.intV.Int64
	case codec.PFloat32, codec.PFloat64:
		bits := 64
		if t == codec.PFloat32 {
			bits = 32
		}
		if c.text.Valid {
			f, err := strconv.ParseFloat(c.text.String, bits)
			if err != nil {
				return p, fmt.Errorf("sqlite: corrupt float %q: %w", c.text.String, err)
			}
			p.Float = f
		} else {
			p.Float = c.real.Float64
		}
	case codec.PString:
		p.Str = c.text.String
	}
	return p, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func get(q queryer, scope, key string) (codec.Primitive, bool, error) {
	var c columns
	err := q.QueryRow(
		`SELECT type, int_value, real_value, text_value FROM settings WHERE scope = ? AND key = ?`,
		scope, key,
	).Scan(&c.typ, &c.intV, &c.real, &c.text)
	if errors.Is(err, sql.ErrNoRows) {
		return codec.Primitive{}, false, nil
	}
	if err != nil {
		return codec.Primitive{}, false, fmt.Errorf("reading %q/%q: %w", scope, key, err)
	}

	p, err := fromColumns(c)
	if err != nil {
		return codec.Primitive{}, false, err
	}
	return p, true, nil
}

// --------------------------------------------------------------------------
// Core PrefDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set compares and upserts inside one transaction.
func (s *sqliteImpl) Set(scope, key string, value codec.Primitive) (bool, error) {
	c, err := toColumns(value)
	if err != nil {
		return false, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	old, loaded, err := get(tx, scope, key)
	if err != nil {
		return false, err
	}
	if loaded && old.Equal(value) {
		return false, nil
	}

	_, err = tx.Exec(`
		INSERT INTO settings (scope, key, type, int_value, real_value, text_value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET
			type = excluded.type,
			int_value = excluded.int_value,
			real_value = excluded.real_value,
			text_value = excluded.text_value,
			updated_at = excluded.updated_at`,
		scope, key, c.typ, c.intV, c.real, c.text, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("writing %q/%q: %w", scope, key, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing %q/%q: %w", scope, key, err)
	}
	return true, nil
}

func (s *sqliteImpl) Delete(scope, key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("deleting %q/%q: %w", scope, key, err)
	}
	return nil
}

func (s *sqliteImpl) Clear(scope string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clearing scope %q: %w", scope, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Core PrefDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Get(scope, key string) (codec.Primitive, bool, error) {
	return get(s.db, scope, key)
}

func (s *sqliteImpl) Has(scope, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM settings WHERE scope = ? AND key = ?)`,
		scope, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking %q/%q: %w", scope, key, err)
	}
	return exists, nil
}

func (s *sqliteImpl) Keys(scope string) ([]string, error) {
	return s.queryStrings(`SELECT key FROM settings WHERE scope = ? ORDER BY key`, scope)
}

func (s *sqliteImpl) Scopes() ([]string, error) {
	return s.queryStrings(`SELECT DISTINCT scope FROM settings ORDER BY scope`)
}

// queryStrings runs a query returning one text column
func (s *sqliteImpl) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("listing: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save is not supported, the database file is the persistence.
func (s *sqliteImpl) Save(io.Writer) error {
	return db.ErrUnsupported
}

// Load is not supported, the database file is the persistence.
func (s *sqliteImpl) Load(io.Reader) error {
	return db.ErrUnsupported
}

// --------------------------------------------------------------------------
// PrefDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureSet |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureClear |
	db.FeatureList |
	db.FeatureNativeAll

// GetInfo returns statistics about the database. Errors are logged and
// leave the affected fields at their zero value.
func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	var (
		rows, scopes        int64
		pageCount, pageSize int64
		lastUpdate          sql.NullString
	)

	if err := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT scope), MAX(updated_at) FROM settings`).Scan(&rows, &scopes, &lastUpdate); err != nil {
		Logger.Warningf("collecting table statistics failed: %v", err)
	}
	if err := s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		Logger.Warningf("reading page count failed: %v", err)
	}
	if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		Logger.Warningf("reading page size failed: %v", err)
	}

	version, err := s.provider.GetDBVersion(context.Background())
	if err != nil {
		Logger.Warningf("reading schema version failed: %v", err)
	}

	meta := &struct {
		Path          string `json:"path"`
		Rows          int64  `json:"rows"`
		Scopes        int64  `json:"scopes"`
		SchemaVersion int64  `json:"schema_version"`
		LastUpdate    string `json:"last_update,omitempty"`
	}{
		Path:          s.path,
		Rows:          rows,
		Scopes:        scopes,
		SchemaVersion: version,
		LastUpdate:    lastUpdate.String,
	}

	features := make([]db.Feature, 0, len(db.AllFeatures))
	for _, f := range db.AllFeatures {
		if supportedFeatures&f == f {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		SizeBytes:         int(pageCount * pageSize),
		DbType:            db.ImplSQLite,
		SupportedFeatures: features,
		Metadata:          meta,
	}
}

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close closes the underlying database connection.
func (s *sqliteImpl) Close() error {
	return s.db.Close()
}
