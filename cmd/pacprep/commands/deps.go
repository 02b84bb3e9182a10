package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/pacprep/pacprep/pkg/backup"
	"github.com/pacprep/pacprep/pkg/catalog"
	"github.com/pacprep/pacprep/pkg/confedit"
	"github.com/pacprep/pacprep/pkg/engine"
	"github.com/pacprep/pacprep/pkg/provision"
	"github.com/pacprep/pacprep/pkg/resolve"
	"github.com/pacprep/pacprep/pkg/retry"
	"github.com/pacprep/pacprep/pkg/stores"
	"github.com/pacprep/pacprep/pkg/syspkg"
	"github.com/pacprep/pacprep/pkg/telemetry"
)

// app is the wired object graph shared by the commands. Everything talks
// to the system through the same runner and metrics instance.
type app struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics

	runner    *syspkg.ExecRunner
	pacman    *syspkg.Pacman
	aur       *syspkg.AURHelper // nil when no helper is installed
	keyring   *syspkg.Keyring
	validator *syspkg.ConfValidator

	backups *backup.Store
	mutator *confedit.Mutator
	retry   *retry.Runner

	provisioner *provision.Provisioner
	resolver    *resolve.Resolver
}

func newApp() (*app, error) {
	log := zlog.Logger
	if verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	metricsCfg := telemetry.DefaultConfig().Metrics
	metricsCfg.ListenAddress = metricsListen
	metrics, err := telemetry.NewMetrics(metricsCfg)
	if err != nil {
		return nil, err
	}
	metrics.Serve()

	runner := &syspkg.ExecRunner{
		Log:      telemetry.ComponentLogger(log, "exec"),
		Observer: metrics,
	}

	pacman := syspkg.NewPacman(runner, telemetry.ComponentLogger(log, "pacman"))
	keyring := syspkg.NewKeyring(runner, telemetry.ComponentLogger(log, "keyring"))
	validator := syspkg.NewConfValidator(runner, telemetry.ComponentLogger(log, "validator"))

	aur, err := syspkg.DetectAURHelper(runner, telemetry.ComponentLogger(log, "aur"))
	if err != nil {
		log.Warn().Err(err).Msg("secondary source unavailable")
		aur = nil
	}

	backups := backup.NewStore(backupDir)
	mutator := &confedit.Mutator{
		Backups:      backups,
		Validator:    validator,
		Log:          telemetry.ComponentLogger(log, "confedit"),
		Observer:     metrics,
		WatchWriters: true,
	}

	retryRunner := retry.NewRunner(telemetry.ComponentLogger(log, "retry"))
	retryRunner.OnAttempt = metrics.ObserveRetry

	provisioner := provision.NewProvisioner(
		pacmanConf, mutator, keyring, pacman, pacman,
		retryRunner, telemetry.ComponentLogger(log, "provision"))

	resolver := &resolve.Resolver{
		Primary: pacman,
		Log:     telemetry.ComponentLogger(log, "resolve"),
	}
	if aur != nil {
		resolver.Secondary = aur
	}

	return &app{
		log:         log,
		metrics:     metrics,
		runner:      runner,
		pacman:      pacman,
		aur:         aur,
		keyring:     keyring,
		validator:   validator,
		backups:     backups,
		mutator:     mutator,
		retry:       retryRunner,
		provisioner: provisioner,
		resolver:    resolver,
	}, nil
}

// loadCatalog returns the catalog file when one is configured, the
// built-in catalog otherwise.
func (a *app) loadCatalog() (*catalog.Catalog, error) {
	if catalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(catalogPath)
}

// openJournal opens (and migrates) the run journal. Failures are reported
// to the caller, who decides whether the journal is required.
func (a *app) openJournal(ctx context.Context) (*stores.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err != nil {
		return nil, err
	}
	journal, err := stores.NewJournal(journalPath)
	if err != nil {
		return nil, err
	}
	if err := journal.Init(ctx); err != nil {
		return nil, err
	}
	if err := journal.Migrate(ctx); err != nil {
		journal.Close()
		return nil, err
	}
	return journal, nil
}

// newOrchestrator builds the pipeline. The journal may be nil; the
// orchestrator then runs without history.
func (a *app) newOrchestrator(journal *stores.Journal) *engine.Orchestrator {
	orch := &engine.Orchestrator{
		Provisioner: a.provisioner,
		Resolver:    a.resolver,
		Primary:     a.pacman,
		Checks:      engine.DefaultSafetyChecks(engine.DefaultSafetyConfig(), a.pacman, a.log),
		Heartbeat:   engine.NewHeartbeat(a.runner, telemetry.ComponentLogger(a.log, "heartbeat")),
		Retry:       a.retry,
		Observer:    a.metrics,
		Log:         telemetry.ComponentLogger(a.log, "engine"),
	}
	if a.aur != nil {
		orch.Secondary = a.aur
	}
	if journal != nil {
		orch.Journal = journal
	}
	return orch
}
