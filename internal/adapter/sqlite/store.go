package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/adoptiq/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: Store implements domain.RecordStore.
var _ domain.RecordStore = (*Store)(nil)

// Store implements domain.RecordStore using SQLite. Every write goes through
// Commit, which runs one SQL transaction with version-guarded statements.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds every call against the database. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db, opts...)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready store.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB, opts ...Option) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat is fixed width so text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const petColumns = `id, name, owner_id, status, adopted_by, adopted_at, created_at, version`

const requestColumns = `id, pet_id, adopter_id, adopter_name, adopter_email, adopter_phone,
	reason, status, created_at, decided_at, decided_by, version`

// queryable lists the columns QueryRequests accepts, keyed by field.
var queryable = map[domain.RequestField]string{
	domain.FieldPetID:     "pet_id",
	domain.FieldAdopterID: "adopter_id",
	domain.FieldStatus:    "status",
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) GetPet(ctx context.Context, id string) (domain.Versioned[domain.Pet], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pet, err := scanPet(s.db.QueryRowContext(ctx,
		`SELECT `+petColumns+` FROM pets WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Versioned[domain.Pet]{}, &domain.NotFoundError{Kind: domain.KindPet, ID: id}
	}
	if err != nil {
		return domain.Versioned[domain.Pet]{}, storageError("get pet", err)
	}
	return pet, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.Versioned[domain.AdoptionRequest], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM adoption_requests WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Versioned[domain.AdoptionRequest]{}, &domain.NotFoundError{Kind: domain.KindRequest, ID: id}
	}
	if err != nil {
		return domain.Versioned[domain.AdoptionRequest]{}, storageError("get request", err)
	}
	return req, nil
}

func (s *Store) QueryRequests(ctx context.Context, field domain.RequestField, value string) ([]domain.Versioned[domain.AdoptionRequest], error) {
	column, ok := queryable[field]
	if !ok {
		return nil, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("cannot query requests by %q", field)}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM adoption_requests
		 WHERE `+column+` = ? ORDER BY created_at, id`, value,
	)
	if err != nil {
		return nil, storageError("query requests", err)
	}
	defer rows.Close()

	var out []domain.Versioned[domain.AdoptionRequest]
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storageError("scan request", err)
		}
		out = append(out, req)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("query requests", err)
	}
	return out, nil
}

func (s *Store) RequestSetVersion(ctx context.Context, petID string) (domain.Version, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT requests_version FROM pets WHERE id = ?`, petID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.NotFoundError{Kind: domain.KindPet, ID: petID}
	}
	if err != nil {
		return 0, storageError("get request set version", err)
	}
	return domain.Version(v), nil
}

// Commit applies the change set in one transaction. Checks run first; each
// write then repeats its own guard in the WHERE clause, so a row that moved
// underneath the transaction turns into ErrVersionConflict and a rollback.
func (s *Store) Commit(ctx context.Context, cs domain.ChangeSet) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, c := range cs.Checks {
		if err := checkVersion(ctx, tx, c); err != nil {
			return err
		}
	}

	for _, w := range cs.Pets {
		if err := writePet(ctx, tx, w); err != nil {
			return err
		}
	}

	for _, w := range cs.Requests {
		if err := writeRequest(ctx, tx, w); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit", err)
	}
	return nil
}

func checkVersion(ctx context.Context, tx *sql.Tx, c domain.Check) error {
	var query string
	switch c.Kind {
	case domain.KindPet:
		query = `SELECT version FROM pets WHERE id = ?`
	case domain.KindRequest:
		query = `SELECT version FROM adoption_requests WHERE id = ?`
	case domain.KindRequestSet:
		query = `SELECT requests_version FROM pets WHERE id = ?`
	default:
		return fmt.Errorf("unknown record kind %q", c.Kind)
	}

	var v int64
	err := tx.QueryRowContext(ctx, query, c.ID).Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageError("check version", err)
	}
	if domain.Version(v) != c.Version {
		return fmt.Errorf("%s %q: %w", c.Kind, c.ID, domain.ErrVersionConflict)
	}
	return nil
}

func writePet(ctx context.Context, tx *sql.Tx, w domain.PetWrite) error {
	p := w.Pet

	if w.Expected == 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pets (`+petColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			p.ID, p.Name, p.OwnerID, string(p.Status), p.AdoptedBy,
			formatTime(p.AdoptedAt), formatTime(p.CreatedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("pet %q: %w", p.ID, domain.ErrVersionConflict)
		}
		if err != nil {
			return storageError("insert pet", err)
		}
		return nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE pets SET name = ?, owner_id = ?, status = ?, adopted_by = ?, adopted_at = ?,
		 version = version + 1
		 WHERE id = ? AND version = ?`,
		p.Name, p.OwnerID, string(p.Status), p.AdoptedBy, formatTime(p.AdoptedAt),
		p.ID, int64(w.Expected),
	)
	if err != nil {
		return storageError("update pet", err)
	}
	return expectOneRow(result, "pet", p.ID)
}

func writeRequest(ctx context.Context, tx *sql.Tx, w domain.RequestWrite) error {
	r := w.Request

	if w.Expected == 0 {
		result, err := tx.ExecContext(ctx,
			`UPDATE pets SET requests_version = requests_version + 1 WHERE id = ?`, r.PetID,
		)
		if err != nil {
			return storageError("bump request set", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return storageError("bump request set", err)
		} else if n == 0 {
			return &domain.NotFoundError{Kind: domain.KindPet, ID: r.PetID}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO adoption_requests (`+requestColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			r.ID, r.PetID, r.AdopterID, r.Adopter.Name, r.Adopter.Email, r.Adopter.Phone,
			r.Adopter.Reason, string(r.Status), formatTime(r.CreatedAt),
			formatTime(r.DecidedAt), r.DecidedBy,
		)
		switch {
		case isPendingViolation(err):
			return &domain.DuplicateRequestError{PetID: r.PetID, AdopterID: r.AdopterID}
		case isUniqueViolation(err):
			return fmt.Errorf("request %q: %w", r.ID, domain.ErrVersionConflict)
		case err != nil:
			return storageError("insert request", err)
		}
		return nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE adoption_requests SET status = ?, decided_at = ?, decided_by = ?,
		 version = version + 1
		 WHERE id = ? AND version = ?`,
		string(r.Status), formatTime(r.DecidedAt), r.DecidedBy,
		r.ID, int64(w.Expected),
	)
	if err != nil {
		return storageError("update request", err)
	}
	return expectOneRow(result, "request", r.ID)
}

func expectOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storageError("checking rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, domain.ErrVersionConflict)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPet(row scanner) (domain.Versioned[domain.Pet], error) {
	var p domain.Pet
	var status, adoptedAt, createdAt string
	var version int64

	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &status, &p.AdoptedBy, &adoptedAt, &createdAt, &version)
	if err != nil {
		return domain.Versioned[domain.Pet]{}, err
	}

	p.Status = domain.PetStatus(status)
	p.AdoptedAt = parseTime(adoptedAt)
	p.CreatedAt = parseTime(createdAt)

	return domain.Versioned[domain.Pet]{Record: p, Version: domain.Version(version)}, nil
}

func scanRequest(row scanner) (domain.Versioned[domain.AdoptionRequest], error) {
	var r domain.AdoptionRequest
	var status, createdAt, decidedAt string
	var version int64

	err := row.Scan(&r.ID, &r.PetID, &r.AdopterID, &r.Adopter.Name, &r.Adopter.Email, &r.Adopter.Phone,
		&r.Adopter.Reason, &status, &createdAt, &decidedAt, &r.DecidedBy, &version)
	if err != nil {
		return domain.Versioned[domain.AdoptionRequest]{}, err
	}

	r.Status = domain.RequestStatus(status)
	r.CreatedAt = parseTime(createdAt)
	r.DecidedAt = parseTime(decidedAt)

	return domain.Versioned[domain.AdoptionRequest]{Record: r, Version: domain.Version(version)}, nil
}

// formatTime stores the zero time as an empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

func storageError(op string, err error) error {
	return &domain.StorageError{Op: op, Transient: isTransient(err), Err: err}
}

// isTransient reports lock contention and deadlines, which a retry may clear.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isPendingViolation matches the partial index guarding one pending request
// per adopter and pet.
func isPendingViolation(err error) bool {
	return isUniqueViolation(err) && strings.Contains(err.Error(), "adoption_requests.pet_id")
}
