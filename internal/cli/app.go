package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/config"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/engine"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/merge"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/metrics"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/persist"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/session"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/store/badgerstore"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/submit"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/transport"
)

// localStore is what both durable backends provide.
type localStore interface {
	persist.SnapshotStore
	submit.Queue
	ListQueueEntries(ctx context.Context) ([]model.OfflineQueueEntry, error)
	DeleteQueueEntry(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id string) error
	Close() error
}

// appOptions tailors openApp to one command.
type appOptions struct {
	// catalog loads the service catalog (file or API).
	catalog bool
	// offline forces the offline submission path.
	offline bool
}

// app is one CLI invocation's wiring: config, store, session and the
// collaborators around it. Every command opens it, acts, then closes it,
// which flushes the session snapshot.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	out     *OutputFormatter
	store   localStore
	metrics *metrics.Collector
	client  *transport.Client
	session *session.Session
	notices *submit.Notices
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the config file and applies the --db override.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	return cfg, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (localStore, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		bc := badgerstore.DefaultConfig(cfg.StorePath())
		bc.Logger = logger
		st, err := badgerstore.Open(bc)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := store.Open(cfg.StorePath())
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func loadCatalog(ctx context.Context, cfg config.Config, client *transport.Client) (*catalog.Catalog, error) {
	if cfg.Catalog != "" {
		return catalog.Load(cfg.Catalog)
	}
	return client.FetchCatalog(ctx)
}

// openApp wires a session over the configured store and restores the
// saved composition and removal set.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command, ao appOptions) (*app, error) {
	out := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fail(out, ErrCodeConfig, ExitCommandError, "failed to load config", err)
	}
	if ao.offline {
		cfg.Offline = true
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, fail(out, ErrCodeStore, ExitCommandError, "failed to open local store", err)
	}

	collector := metrics.NewCollector("")
	gw, err := persist.New(st,
		persist.WithKey(cfg.SessionKey),
		persist.WithDelay(cfg.Debounce),
		persist.WithLogger(logger),
		persist.WithWriteHook(collector.RecordPersistWrite),
	)
	if err != nil {
		_ = st.Close()
		return nil, fail(out, ErrCodeGeneric, ExitCommandError, "failed to create snapshot gateway", err)
	}

	client := transport.New(transport.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout, Logger: logger})

	var cat *catalog.Catalog
	if ao.catalog {
		cat, err = loadCatalog(ctx, cfg, client)
		if err != nil {
			_ = st.Close()
			return nil, fail(out, ErrCodeCatalog, ExitCommandError, "failed to load catalog", err)
		}
	}

	var conn transport.Connectivity = transport.NewProbe(client)
	if cfg.Offline {
		conn = transport.Static(false)
	}

	eng := engine.New(engine.WithLogger(logger))
	notices := submit.NewNotices(cfg.NoticeTTL)
	pipeline := submit.New(submit.Config{
		Composer:     eng,
		Sender:       client,
		Connectivity: conn,
		Queue:        st,
		Snapshots:    gw,
		Strategy:     cfg.Strategy,
		Notices:      notices,
		Metrics:      collector,
		Logger:       logger,
	})

	sess := session.New(session.Options{
		Engine:   eng,
		Gateway:  gw,
		Catalog:  cat,
		Pipeline: pipeline,
		Removed:  merge.NewRemovalSet(),
		Logger:   logger,
	})

	a := &app{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		store:   st,
		metrics: collector,
		client:  client,
		session: sess,
		notices: notices,
	}
	restored := sess.Restore(ctx)
	a.loadRemovals(ctx)
	logger.Debug("session opened",
		"store", cfg.StorePath(),
		"backend", string(cfg.Backend),
		"restored", restored,
		"selections", len(sess.State().Selections))
	return a, nil
}

// removalKey stores the removal set next to the session snapshot. A CLI
// session spans many processes, so the set has to outlive each one.
// Only the CLI does this; an in-process host keeps the set in memory and
// lets it die with the process.
func (a *app) removalKey() string {
	return a.cfg.SessionKey + ".removed"
}

func (a *app) loadRemovals(ctx context.Context) {
	data, err := a.store.LoadSnapshot(ctx, a.removalKey())
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err == nil {
		err = a.session.LoadRemovals(data)
	}
	if err != nil {
		a.logger.Warn("discarding saved removals", "key", a.removalKey(), "error", err)
	}
}

func (a *app) saveRemovals(ctx context.Context) error {
	rs := a.session.Removed()
	if rs.Len() == 0 && rs.Source() == "" {
		return a.store.DeleteSnapshot(ctx, a.removalKey())
	}
	data, err := a.session.EncodeRemovals()
	if err != nil {
		return err
	}
	return a.store.SaveSnapshot(ctx, a.removalKey(), data)
}

// close flushes the snapshot, saves the removal set and closes the store.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.session.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush snapshot: %w", err))
	}
	if err := a.saveRemovals(ctx); err != nil {
		errs = append(errs, fmt.Errorf("save removals: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if m, err := a.metrics.Snapshot(); err == nil {
		a.logger.Debug("metrics", "values", m)
	}
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes the app. A close failure is
// reported only when fn succeeded.
func withApp(opts *RootOptions, cmd *cobra.Command, ao appOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts, cmd, ao)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.close(ctx); err != nil && runErr == nil {
		return fail(a.out, ErrCodeStore, ExitCommandError, "failed to save session", err)
	}
	return runErr
}

// fail reports an error through the formatter and returns it with an
// exit code.
func fail(out *OutputFormatter, code string, exit int, message string, err error) error {
	detail := message
	if err != nil {
		detail = fmt.Sprintf("%s: %v", message, err)
	}
	if out.Format == "json" {
		_ = out.Error(code, detail, nil)
	}
	return WrapExitError(exit, message, err)
}
