// Package file provides a file-backed Repository implementation, one
// TOML-encoded record per transaction, modeled on the teacher's TOML
// config loader (config/loader/toml): github.com/pelletier/go-toml/v2 for
// encoding, and a write-to-temp-then-rename sequence so a crash mid-write
// never leaves a torn file behind.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid/v5"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/tylooteam/tyloo/internal/txcore"
)

// record is the on-disk shape. txcore.Record's Attachments is a
// map[string]any, which go-toml/v2 round-trips fine as long as the
// concrete values are TOML-representable scalars, slices, or maps.
type record struct {
	Xid          string         `toml:"xid"`
	BranchID     string         `toml:"branch_id"`
	Type         string         `toml:"type"`
	Status       uint8          `toml:"status"`
	RetriedCount int            `toml:"retried_count"`
	Version      int64          `toml:"version"`
	CreatedAt    string         `toml:"created_at"`
	LastUpdateAt string         `toml:"last_update_at"`
	Participants []participant  `toml:"participants"`
	Attachments  map[string]any `toml:"attachments"`
}

type participant struct {
	ConfirmTarget string `toml:"confirm_target"`
	ConfirmMethod string `toml:"confirm_method"`
	ConfirmArgs   []any  `toml:"confirm_args"`
	CancelTarget  string `toml:"cancel_target"`
	CancelMethod  string `toml:"cancel_method"`
	CancelArgs    []any  `toml:"cancel_args"`
	State         string `toml:"state"`
}

// Repository is a TOML file-backed Repository. Each transaction is a
// single file under Dir named "<xid>_<branchId>.toml" (branchId is the
// all-zero UUID for a root transaction).
type Repository struct {
	mu      sync.Mutex
	dir     string
	handler slog.Handler
	logger  *slog.Logger
}

// New creates a Repository rooted at dir, creating dir if it doesn't
// exist. handler rebuilds transactions' loggers and state machines on
// FindByXid; pass nil for the default text-to-stdout handler.
func New(dir string, handler slog.Handler) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("repository/file: create dir %s: %w", dir, err)
	}
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return &Repository{
		dir:     dir,
		handler: handler,
		logger:  slog.New(handler).WithGroup("repository.file"),
	}, nil
}

func (r *Repository) pathFor(xid, branchID uuid.UUID) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.toml", xid, branchID))
}

func (r *Repository) Create(_ context.Context, tx *txcore.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.pathFor(tx.Xid, tx.BranchID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("repository/file: transaction %s already exists", tx.Xid)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("repository/file: stat %s: %w", path, err)
	}

	tx.Version = 1
	if err := r.writeAtomic(path, toDisk(tx.Snapshot())); err != nil {
		return err
	}
	r.logger.Debug("transaction created", "xid", tx.Xid, "path", path)
	return nil
}

func (r *Repository) Update(_ context.Context, tx *txcore.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.pathFor(tx.Xid, tx.BranchID)
	existing, err := r.readLocked(path)
	if err != nil {
		return fmt.Errorf("repository/file: update %s: %w", tx.Xid, err)
	}

	if existing.Version != tx.Version {
		return fmt.Errorf(
			"repository/file: update %s: %w (have %d, stored %d)",
			tx.Xid, txcore.ErrOptimisticLock, tx.Version, existing.Version,
		)
	}

	tx.Version++
	if err := r.writeAtomic(path, toDisk(tx.Snapshot())); err != nil {
		return err
	}
	r.logger.Debug("transaction updated", "xid", tx.Xid, "version", tx.Version)
	return nil
}

func (r *Repository) FindByXid(_ context.Context, xid, branchID uuid.UUID) (*txcore.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.readLocked(r.pathFor(xid, branchID))
	if err != nil {
		return nil, fmt.Errorf("repository/file: find %s: %w", xid, err)
	}
	return txcore.Restore(rec, r.handler)
}

func (r *Repository) Delete(_ context.Context, tx *txcore.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.pathFor(tx.Xid, tx.BranchID)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("repository/file: delete %s: %w", path, err)
	}
	r.logger.Debug("transaction deleted", "xid", tx.Xid, "path", path)
	return nil
}

// All returns every persisted record, for recovery scans. Files that fail
// to parse are logged and skipped rather than aborting the whole scan.
func (r *Repository) All() []txcore.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.logger.Error("list directory failed", "dir", r.dir, "error", err)
		return nil
	}

	recs := make([]txcore.Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		rec, err := r.readLocked(path)
		if err != nil {
			r.logger.Error("skip unreadable record", "path", path, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// readLocked must be called with r.mu held.
func (r *Repository) readLocked(path string) (txcore.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return txcore.Record{}, txcore.ErrNoExistedTransaction
		}
		return txcore.Record{}, fmt.Errorf("read %s: %w", path, err)
	}

	var rec record
	if err := gotoml.Unmarshal(data, &rec); err != nil {
		return txcore.Record{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return fromDisk(rec)
}

// writeAtomic must be called with r.mu held. It writes to a sibling
// temp file and renames over the destination, so a crash mid-write never
// corrupts an existing record.
func (r *Repository) writeAtomic(path string, rec record) error {
	data, err := gotoml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("repository/file: encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("repository/file: write temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("repository/file: rename %s: %w", tmp, err)
	}
	return nil
}
