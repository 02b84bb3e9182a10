// Package backup creates timestamped snapshots of files before they are
// mutated and restores the most recent snapshot on demand. Snapshots are
// immutable once written; pruning old ones is left to external tooling.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timeLayout is a lexically sortable timestamp with nanosecond precision so
// that two backups of the same file taken in quick succession still order
// correctly by name.
const timeLayout = "20060102T150405.000000000"

const suffix = ".bak"

// Backup identifies a single snapshot on disk.
type Backup struct {
	// Path is the location of the snapshot file.
	Path string

	// Source is the original file the snapshot was taken from.
	Source string

	// CreatedAt is the snapshot creation time, encoded in the file name.
	CreatedAt time.Time
}

// Store creates and restores snapshots. The zero value places snapshots
// next to the original file; set Dir to collect them elsewhere.
type Store struct {
	// Dir, when non-empty, is the directory snapshots are written to.
	Dir string

	// now is overridable for tests.
	now func() time.Time
}

// NewStore returns a Store writing snapshots into dir, or alongside the
// original file when dir is empty.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, now: time.Now}
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Store) dirFor(path string) string {
	if s.Dir != "" {
		return s.Dir
	}
	return filepath.Dir(path)
}

// Backup copies path into a new snapshot and returns its location. The
// original file is not touched. It fails when path does not exist or
// cannot be read.
func (s *Store) Backup(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for backup: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	dir := s.dirFor(path)
	if s.Dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create backup dir: %w", err)
		}
	}

	name := fmt.Sprintf("%s.pacprep-%s%s", filepath.Base(path), s.clock().UTC().Format(timeLayout), suffix)
	dest := filepath.Join(dir, name)

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("create backup %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("copy to backup %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("close backup %s: %w", dest, err)
	}
	return dest, nil
}

// List returns all snapshots of path, newest first.
func (s *Store) List(path string) ([]Backup, error) {
	dir := s.dirFor(path)
	prefix := filepath.Base(path) + ".pacprep-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir %s: %w", dir, err)
	}

	var backups []Backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		created, err := time.Parse(timeLayout, stamp)
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			Path:      filepath.Join(dir, name),
			Source:    path,
			CreatedAt: created,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// RestoreLatest overwrites path with the contents of its most recent
// snapshot. It returns false without error when no snapshot exists, which
// is an expected condition for files never backed up. The restore itself
// is atomic: contents are written to a temporary file in the destination
// directory and renamed over path.
func (s *Store) RestoreLatest(path string) (bool, error) {
	backups, err := s.List(path)
	if err != nil {
		return false, err
	}
	if len(backups) == 0 {
		return false, nil
	}
	latest := backups[0]

	data, err := os.ReadFile(latest.Path)
	if err != nil {
		return false, fmt.Errorf("read backup %s: %w", latest.Path, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	} else if info, err := os.Stat(latest.Path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".restore-*")
	if err != nil {
		return false, fmt.Errorf("create restore scratch: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, fmt.Errorf("write restore scratch: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, fmt.Errorf("chmod restore scratch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("close restore scratch: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("replace %s with backup: %w", path, err)
	}
	return true, nil
}
