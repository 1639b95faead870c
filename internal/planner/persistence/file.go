package persistence

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/shapes"
)

// ============================================================
// File Bridge
// ============================================================

// documentFile is the on-disk layout of one document.
type documentFile struct {
	ID        string         `json:"id"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Shapes    []shapes.Shape `json:"shapes"`
}

// FileBridge keeps each document as <root>/<id>.json, replaced atomically
// on every save.
type FileBridge struct {
	root string
	log  *log.Logger
	now  func() time.Time

	mu sync.Mutex
}

var _ Bridge = (*FileBridge)(nil)

func NewFileBridge(root string, logger *log.Logger) (*FileBridge, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.Validation("data directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileBridge{root: root, log: logger.With("data_dir", root), now: time.Now}, nil
}

// Path возвращает путь к файлу документа.
func (b *FileBridge) Path(documentID string) string {
	name := sanitize(documentID)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(b.root, name+".json")
}

func (b *FileBridge) Load(ctx context.Context, documentID string) ([]shapes.Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := b.read(b.Path(documentID))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NotFound("document %s", documentID)
		}
		b.log.Warn("document load failed", "document", documentID, "err", err)
		return nil, err
	}
	if doc.Shapes == nil {
		doc.Shapes = []shapes.Shape{}
	}
	return doc.Shapes, nil
}

func (b *FileBridge) read(path string) (documentFile, error) {
	var doc documentFile
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, errors.Wrap(errors.CodeInternal, err, "decode %s", filepath.Base(path))
	}
	return doc, nil
}

// Save пишет во временный файл и переименовывает его поверх старого.
func (b *FileBridge) Save(ctx context.Context, documentID string, list []shapes.Shape) error {
	if documentID == "" {
		return errors.Validation("document id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if list == nil {
		list = []shapes.Shape{}
	}

	data, err := json.MarshalIndent(documentFile{ID: documentID, UpdatedAt: b.now().UTC(), Shapes: list}, "", "  ")
	if err != nil {
		return errors.Wrap(errors.CodeValidation, err, "encode document %s", documentID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.Path(documentID)
	if err := writeAtomic(path, data); err != nil {
		b.log.Warn("document save failed", "document", documentID, "err", err)
		return fmt.Errorf("save document %s: %w", documentID, err)
	}
	b.log.Debug("document saved", "document", documentID, "shapes", len(list))
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*.tmp")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (b *FileBridge) List(ctx context.Context) ([]DocumentInfo, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var out []DocumentInfo
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		doc, err := b.read(filepath.Join(b.root, e.Name()))
		if err != nil {
			b.log.Warn("skipping unreadable document", "file", e.Name(), "err", err)
			continue
		}
		out = append(out, DocumentInfo{ID: doc.ID, Shapes: len(doc.Shapes), UpdatedAt: doc.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (b *FileBridge) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.Path(documentID)); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return errors.NotFound("document %s", documentID)
		}
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

func (b *FileBridge) Close() error { return nil }

func sanitize(value string) string {
	var sb strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
