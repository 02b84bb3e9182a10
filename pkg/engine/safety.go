package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"
)

// SafetyCheck is one precondition verified before the pipeline mutates
// anything. Checks must be read-only.
type SafetyCheck struct {
	// Name identifies the check in logs and abort reasons.
	Name string

	// Run performs the check.
	Run func(ctx context.Context) error
}

// DatabaseChecker verifies the local package database is consistent.
type DatabaseChecker interface {
	CheckDatabase(ctx context.Context) error
}

// SafetyConfig parameterizes the default check set.
type SafetyConfig struct {
	// ProbeURL is fetched with a HEAD request to verify connectivity.
	ProbeURL string

	// MinFreeBytes is the free-space floor on DataPath's filesystem.
	MinFreeBytes uint64

	// DataPath is the mount point checked for free space.
	DataPath string

	// LockPath is the package-manager lock file that must be absent.
	LockPath string

	// Timeout bounds the connectivity probe.
	Timeout time.Duration
}

// DefaultSafetyConfig returns the stock thresholds: an archlinux.org
// probe, 1 GiB free under /var, and the pacman database lock.
func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		ProbeURL:     "https://archlinux.org",
		MinFreeBytes: 1 << 30,
		DataPath:     "/var",
		LockPath:     "/var/lib/pacman/db.lck",
		Timeout:      10 * time.Second,
	}
}

// DefaultSafetyChecks builds the standard precondition set: root
// privileges, network reachability, free disk space, a consistent package
// database, and no concurrent package-manager transaction.
func DefaultSafetyChecks(cfg SafetyConfig, db DatabaseChecker, log zerolog.Logger) []SafetyCheck {
	return []SafetyCheck{
		{Name: "privileges", Run: checkPrivileges},
		{Name: "connectivity", Run: checkConnectivity(cfg.ProbeURL, cfg.Timeout)},
		{Name: "disk-space", Run: checkDiskSpace(cfg.DataPath, cfg.MinFreeBytes, log)},
		{Name: "package-db", Run: db.CheckDatabase},
		{Name: "db-lock", Run: checkLockAbsent(cfg.LockPath)},
	}
}

func checkPrivileges(context.Context) error {
	if euid := os.Geteuid(); euid != 0 {
		return fmt.Errorf("must run as root, effective uid is %d", euid)
	}
	return nil
}

func checkConnectivity(url string, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return fmt.Errorf("build probe request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("reach %s: %w", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("probe %s answered %s", url, resp.Status)
		}
		return nil
	}
}

func checkDiskSpace(path string, minFree uint64, log zerolog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return fmt.Errorf("stat filesystem %s: %w", path, err)
		}
		log.Debug().Str("path", path).Uint64("free_bytes", usage.Free).Msg("free space")
		if usage.Free < minFree {
			return fmt.Errorf("%s has %d bytes free, need at least %d", path, usage.Free, minFree)
		}
		return nil
	}
}

func checkLockAbsent(lockPath string) func(context.Context) error {
	return func(context.Context) error {
		if _, err := os.Stat(lockPath); err == nil {
			return fmt.Errorf("package manager lock %s exists, another transaction is running", lockPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", lockPath, err)
		}
		return nil
	}
}
