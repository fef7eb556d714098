package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	githubadapter "github.com/ericfisherdev/prreaper/internal/adapter/driven/github"
	natsadapter "github.com/ericfisherdev/prreaper/internal/adapter/driven/natskv"
	sqliteadapter "github.com/ericfisherdev/prreaper/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/prreaper/internal/application"
	"github.com/ericfisherdev/prreaper/internal/config"
	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
	"github.com/ericfisherdev/prreaper/internal/metrics"
)

// githubCredential is the credential store service name for the API token.
const githubCredential = "github"

type pinger interface {
	Ping(ctx context.Context) error
}

// app holds the configuration and the opened stores shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	records     driven.RecordStore
	runs        driven.RunStore
	credentials driven.CredentialStore // nil for the NATS store.
	store       pinger

	close func() error
}

// newLogger builds the process logger from the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// loadConfig loads the configuration and installs the configured logger as
// the slog default.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openApp loads configuration and opens the configured store. SQLite
// migrations are applied before any store is used.
func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	switch cfg.Store {
	case config.StoreNATS:
		conn, err := natsadapter.Connect(ctx, cfg.NATSURL, cfg.NATSBucket)
		if err != nil {
			return nil, err
		}
		logger.Info("nats store connected", "url", cfg.NATSURL, "bucket", cfg.NATSBucket)

		a.records = natsadapter.NewRecordRepo(conn)
		a.runs = natsadapter.NewRunRepo(conn)
		a.store = conn
		a.close = conn.Close

	default:
		db, err := openSQLite(ctx, cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}

		credentials, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		a.records = sqliteadapter.NewRecordRepo(db)
		a.runs = sqliteadapter.NewRunRepo(db)
		a.credentials = credentials
		a.store = db
		a.close = db.Close
	}

	return a, nil
}

// openSQLite opens the database and brings its schema up to date.
func openSQLite(ctx context.Context, path string, logger *slog.Logger) (*sqliteadapter.DB, error) {
	db, err := sqliteadapter.NewDB(ctx, path)
	if err != nil {
		return nil, err
	}

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database opened", "path", path, "schema_version", version)

	return db, nil
}

// Close releases the store.
func (a *app) Close() {
	if a.close == nil {
		return
	}
	if err := a.close(); err != nil {
		a.logger.Error("error closing store", "error", err)
	}
}

// githubToken resolves the API token. A configured token wins over the
// stored credential.
func (a *app) githubToken(ctx context.Context) (string, error) {
	if a.cfg.HasGitHubToken() {
		return a.cfg.GitHubToken, nil
	}

	if a.credentials == nil {
		return "", errors.New("no GitHub token configured: set REAPER_GITHUB_TOKEN")
	}

	token, err := a.credentials.Get(ctx, githubCredential)
	if err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			return "", errors.New("no GitHub token configured: set REAPER_GITHUB_TOKEN, or REAPER_SECRET_KEY to use a stored token")
		}
		return "", fmt.Errorf("load stored GitHub token: %w", err)
	}
	if token == "" {
		return "", errors.New("no GitHub token configured: set REAPER_GITHUB_TOKEN or run `prreaper credentials set-token`")
	}

	return token, nil
}

// policy converts the configuration into the engine's policy.
func (a *app) policy() application.Policy {
	return application.Policy{
		Repositories:           a.cfg.Repositories,
		WarningThresholdDays:   a.cfg.WarningThresholdDays,
		ExecutionThresholdDays: a.cfg.ExecutionThresholdDays,
		ImmunityLabels:         model.NewLabelSet(a.cfg.ImmunityLabels...),
		Messages: application.Messages{
			Warning:  a.cfg.WarningMessage,
			Closing:  a.cfg.ClosingMessage,
			Reprieve: a.cfg.ReprieveMessage,
		},
	}
}

// newRunner wires the GitHub client, the engine and the run tracker.
func (a *app) newRunner(ctx context.Context, recorder *metrics.Recorder) (*application.Runner, error) {
	token, err := a.githubToken(ctx)
	if err != nil {
		return nil, err
	}

	ghClient := githubadapter.NewClient(token)
	policy := a.policy()

	scope := "all accessible repositories"
	if len(policy.Repositories) > 0 {
		scope = fmt.Sprintf("%d repositories", len(policy.Repositories))
	}
	a.logger.Info("reaper configured",
		"scope", scope,
		"warning_threshold_days", policy.WarningThresholdDays,
		"execution_threshold_days", policy.ExecutionThresholdDays,
		"immunity_labels", policy.ImmunityLabels.Names(),
		"store", a.cfg.Store,
	)

	reaper := application.NewReaperService(ghClient, a.records, policy, a.logger)

	var runMetrics driven.RunMetrics
	if recorder != nil {
		runMetrics = recorder
	}
	return application.NewRunner(reaper, a.runs, runMetrics, a.logger), nil
}
