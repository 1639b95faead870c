package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/shapes"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Fixed-width so that updated_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ============================================================
// SQLite Bridge
// ============================================================

type SQLiteBridge struct {
	db  *sql.DB
	log *log.Logger
	now func() time.Time
}

var _ Bridge = (*SQLiteBridge)(nil)

// OpenSQLite открывает базу по указанному пути и применяет миграции.
func OpenSQLite(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteBridge, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := NewSQLite(db, logger)
	if err := b.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLite wraps an already open database. Call Migrate before use.
func NewSQLite(db *sql.DB, logger *log.Logger) *SQLiteBridge {
	if logger == nil {
		logger = log.Default()
	}
	return &SQLiteBridge{db: db, log: logger, now: time.Now}
}

// Migrate применяет встроенные миграции по порядку имён.
func (b *SQLiteBridge) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		data, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := b.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
		b.log.Debug("migration applied", "name", e.Name())
	}
	return nil
}

func (b *SQLiteBridge) Close() error {
	return b.db.Close()
}

// ============================================================
// Queries
// ============================================================

func (b *SQLiteBridge) Load(ctx context.Context, documentID string) ([]shapes.Shape, error) {
	var exists int
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, documentID).Scan(&exists)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("document %s", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	rows, err := b.db.QueryContext(ctx, `
        SELECT id, body
        FROM shapes
        WHERE document_id = ?
        ORDER BY position
    `, documentID)
	if err != nil {
		return nil, fmt.Errorf("load shapes of %s: %w", documentID, err)
	}
	defer rows.Close()

	list := []shapes.Shape{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan shape: %w", err)
		}
		var sh shapes.Shape
		if err := json.Unmarshal([]byte(body), &sh); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "decode shape %s of %s", id, documentID)
		}
		list = append(list, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shapes: %w", err)
	}
	return list, nil
}

// Save заменяет документ целиком в одной транзакции.
func (b *SQLiteBridge) Save(ctx context.Context, documentID string, list []shapes.Shape) (err error) {
	if documentID == "" {
		return errors.Validation("document id is required")
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := b.now().UTC().Format(timeLayout)
	if _, err = tx.ExecContext(ctx, `
        INSERT INTO documents (id, shape_count, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET shape_count = excluded.shape_count, updated_at = excluded.updated_at
    `, documentID, len(list), now, now); err != nil {
		return fmt.Errorf("upsert document %s: %w", documentID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM shapes WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear shapes of %s: %w", documentID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO shapes (document_id, id, position, type, body)
        VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, sh := range list {
		body, merr := json.Marshal(sh)
		if merr != nil {
			err = errors.Wrap(errors.CodeValidation, merr, "encode shape %s", sh.ID)
			return err
		}
		if _, err = stmt.ExecContext(ctx, documentID, sh.ID, i, string(sh.Type), string(body)); err != nil {
			if stderrors.Is(err, sqlite3.CONSTRAINT) {
				err = errors.Wrap(errors.CodeConflict, err, "shape %s appears twice in %s", sh.ID, documentID)
				return err
			}
			return fmt.Errorf("insert shape %s: %w", sh.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	b.log.Debug("document saved", "document", documentID, "shapes", len(list))
	return nil
}

func (b *SQLiteBridge) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := b.db.QueryContext(ctx, `
        SELECT id, shape_count, updated_at
        FROM documents
        ORDER BY updated_at DESC, id
    `)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var (
			info    DocumentInfo
			updated string
		)
		if err := rows.Scan(&info.ID, &info.Shapes, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if info.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
			return nil, fmt.Errorf("parse updated_at of %s: %w", info.ID, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (b *SQLiteBridge) Delete(ctx context.Context, documentID string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shapes WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete shapes of %s: %w", documentID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("document %s", documentID)
	}
	return tx.Commit()
}
