package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/jamsync/jam-server/internal/config"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/notify"
	"github.com/jamsync/jam-server/internal/store/sqlite"
)

// ProvideNotifyHub provides the change-notification hub the store announces commits on.
func ProvideNotifyHub(i do.Injector) (*notify.Hub, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return notify.NewHub(log.Logger), nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite store wired to the notification hub.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hub := do.MustInvoke[*notify.Hub](i)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.Path, log.Logger)
	if err != nil {
		return nil, err
	}
	db.SetNotifier(hub)

	log.Info("Database initialized", "path", cfg.Database.Path)

	return &StoreHandle{Store: db}, nil
}
