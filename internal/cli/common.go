package cli

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"

	"github.com/majiayu000/remem/internal/config"
	"github.com/majiayu000/remem/internal/llm"
	"github.com/majiayu000/remem/internal/logging"
	"github.com/majiayu000/remem/internal/store"
)

// env bundles the resources every hook subcommand needs, opened once per
// process and closed before the command returns.
type env struct {
	cfg     config.Config
	logger  *charmlog.Logger
	closeLg func() error
	store   *store.Store
	db      *store.DB
}

func openEnv() (*env, error) {
	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger, closeLg, err := logging.Open(cfg.LogPath(), cfg.LogMaxBytes, cfg.Debug)
	if err != nil {
		logger = logging.Discard()
		closeLg = func() error { return nil }
	}

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		closeLg()
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &env{cfg: cfg, logger: logger, closeLg: closeLg, store: store.New(db), db: db}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.closeLg()
}

func (e *env) executor() llm.Executor {
	return llm.New(e.cfg)
}

// exitHookOK prints err to the log (if non-nil) but always exits 0: hook
// subcommands must never be seen as failing by the host.
func exitHookOK(e *env, err error) {
	if err != nil && e != nil {
		e.logger.Error("hook failed", "err", err)
	}
	if e != nil {
		e.Close()
	}
	os.Exit(0)
}
