// Package confedit applies structural edits to the shared configuration
// file through a copy-edit-validate-atomic-replace sequence. It is the
// only mutation path for the file: every edit is backed up first,
// validated by the package toolchain before it becomes visible, and rolled
// back when validation fails. Readers never observe a partially written
// file because the replace step is a same-directory rename.
package confedit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/pacprep/pacprep/pkg/pacconf"
)

// Edit is a structural transformation of the parsed document: add or
// uncomment a section, append a directive. Edits operate on a transient
// working copy and must not perform I/O of their own.
type Edit func(*pacconf.Document) error

// Validator checks a candidate configuration file without mutating system
// state.
type Validator interface {
	Validate(ctx context.Context, candidatePath string) error
}

// BackupStore snapshots the target before mutation and restores the most
// recent snapshot on rollback.
type BackupStore interface {
	Backup(path string) (string, error)
	RestoreLatest(path string) (bool, error)
}

// MutationObserver receives edit outcomes, used to feed metrics.
type MutationObserver interface {
	ObserveMutation(outcome string)
}

// Mutator owns the single-writer mutation discipline for one or more
// configuration files.
type Mutator struct {
	// Backups snapshots files before mutation.
	Backups BackupStore

	// Validator checks scratch copies before they replace the original.
	Validator Validator

	// Log receives per-edit diagnostics.
	Log zerolog.Logger

	// Observer, when set, receives edit outcomes (applied, noop,
	// rolled_back, rollback_failed).
	Observer MutationObserver

	// WatchWriters enables the concurrent-writer tripwire: the target is
	// watched while the edit is in flight and an external write aborts
	// the replace step. No concurrent mutator is supported; the tripwire
	// makes a violation observable instead of silently losing a write.
	WatchWriters bool
}

func (m *Mutator) observe(outcome string) {
	if m.Observer != nil {
		m.Observer.ObserveMutation(outcome)
	}
}

// ApplyEdit applies edit to the file at path under the mutation contract:
//
//  1. the edit is applied to an in-memory copy first; a semantic no-op
//     (already configured) returns success before any side effect,
//  2. the original is backed up,
//  3. the edited document is written to a scratch file in the same
//     directory,
//  4. the scratch copy is validated by the toolchain,
//  5. on success the scratch atomically replaces the original,
//  6. on validation failure the scratch is discarded, the backup is
//     restored and a MutationError carrying the diagnostic is returned.
//
// The scratch file is removed on every path out of this function,
// including context cancellation, so interruption leaves no stray files.
func (m *Mutator) ApplyEdit(ctx context.Context, path string, edit Edit) error {
	original, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := pacconf.Parse(original)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := edit(doc); err != nil {
		return fmt.Errorf("edit %s: %w", path, err)
	}

	edited := doc.Render()
	if bytes.Equal(edited, original) {
		m.Log.Debug().Str("path", path).Msg("edit is a no-op, skipping")
		m.observe("noop")
		return nil
	}

	var watcher *writerWatch
	if m.WatchWriters {
		watcher, err = watchFile(path)
		if err != nil {
			m.Log.Warn().Err(err).Str("path", path).Msg("writer tripwire unavailable")
		} else {
			defer watcher.Close()
		}
	}

	if _, err := m.Backups.Backup(path); err != nil {
		return fmt.Errorf("backup before edit: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	scratch, err := writeScratch(path, edited, mode)
	if err != nil {
		return err
	}
	defer os.Remove(scratch) // no-op after a successful rename

	if err := m.Validator.Validate(ctx, scratch); err != nil {
		return m.rollback(path, err)
	}

	if watcher != nil && watcher.Tripped() {
		m.Log.Error().Str("path", path).Msg("external write detected, abandoning edit")
		return fmt.Errorf("%w: %s", ErrConcurrentWrite, path)
	}

	if err := os.Rename(scratch, path); err != nil {
		return m.rollback(path, fmt.Errorf("replace %s: %w", path, err))
	}

	m.Log.Info().Str("path", path).Msg("configuration edit applied")
	m.observe("applied")
	return nil
}

// rollback restores the latest backup after a failed edit and wraps the
// cause into a MutationError.
func (m *Mutator) rollback(path string, cause error) error {
	restored, rerr := m.Backups.RestoreLatest(path)
	if rerr != nil || !restored {
		m.observe("rollback_failed")
		return &MutationError{
			Path:           path,
			Diagnostic:     cause.Error(),
			RollbackFailed: true,
			Err:            cause,
		}
	}
	m.observe("rolled_back")
	return &MutationError{Path: path, Diagnostic: cause.Error(), Err: cause}
}

// writeScratch writes content to a hidden temporary file next to path so
// the later rename stays on one filesystem.
func writeScratch(path string, content []byte, mode os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".pacprep-*")
	if err != nil {
		return "", fmt.Errorf("create scratch in %s: %w", dir, err)
	}
	name := f.Name()
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write scratch %s: %w", name, err)
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("chmod scratch %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close scratch %s: %w", name, err)
	}
	return name, nil
}

// writerWatch accumulates write events for one file.
type writerWatch struct {
	watcher *fsnotify.Watcher
	path    string
	tripped chan struct{}
}

func watchFile(path string) (*writerWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and renames replace the inode, which a
	// file-level watch would miss.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	ww := &writerWatch{watcher: w, path: path, tripped: make(chan struct{})}
	go ww.loop()
	return ww, nil
}

func (w *writerWatch) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				select {
				case <-w.tripped:
				default:
					close(w.tripped)
				}
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Tripped reports whether an external write to the file was observed.
func (w *writerWatch) Tripped() bool {
	select {
	case <-w.tripped:
		return true
	default:
		return false
	}
}

// Close stops the watch.
func (w *writerWatch) Close() error {
	return w.watcher.Close()
}
