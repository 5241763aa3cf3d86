package cli

import (
	"fmt"

	"github.com/matt-wil/masterblog/internal/config"
	"github.com/matt-wil/masterblog/internal/store"
	"github.com/matt-wil/masterblog/internal/store/badger"
	"github.com/matt-wil/masterblog/internal/store/sqlite"
)

func openStore(cfg config.Config) (store.Settings, error) {
	switch cfg.Store {
	case config.StoreBadger:
		st, err := badger.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return st, nil
	case config.StoreSQLite, "":
		st, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want sqlite or badger)", cfg.Store)
	}
}
