package app

import (
	"fmt"

	"github.com/blackwell-systems/swinv/internal/history"
	"github.com/blackwell-systems/swinv/internal/platform"
	"github.com/blackwell-systems/swinv/internal/store"
	"github.com/blackwell-systems/swinv/internal/swid"
)

// openStore opens the configured database.
func openStore() (*store.Store, error) {
	db, err := store.Open(databaseURI())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolvePlatform determines the history dialect and the OS label used
// in software identifiers. Configuration values win; anything left
// blank is detected from /etc/os-release.
func resolvePlatform() (kind, osLabel string, err error) {
	kind = cfg.Source
	osLabel = cfg.OS
	if kind != "" && osLabel != "" {
		return kind, osLabel, nil
	}

	info, err := platform.Detect()
	if err != nil {
		return "", "", fmt.Errorf("failed to detect platform (set source and os in the config): %w", err)
	}
	if kind == "" {
		if kind, err = info.PackageManager(); err != nil {
			return "", "", err
		}
	}
	if osLabel == "" {
		osLabel = info.String()
	}
	return kind, osLabel, nil
}

// buildNamer returns the identity namer for this endpoint's platform.
func buildNamer() (*swid.Namer, error) {
	_, osLabel, err := resolvePlatform()
	if err != nil {
		return nil, err
	}
	return swid.NewNamer(cfg.RegID, cfg.Entity, osLabel), nil
}

// buildSync assembles the synchronizer: dialect, namer and logger.
func buildSync(db *store.Store) (*history.Sync, history.Source, error) {
	kind, osLabel, err := resolvePlatform()
	if err != nil {
		return nil, nil, err
	}
	src, err := history.NewSource(kind)
	if err != nil {
		return nil, nil, err
	}
	namer := swid.NewNamer(cfg.RegID, cfg.Entity, osLabel)
	return history.NewSync(db, src, namer, appLog), src, nil
}

// resolveLog returns the history log path: flag, then config, then the
// dialect default.
func resolveLog(src history.Source) string {
	if flagHistory != "" {
		return flagHistory
	}
	if cfg.HistoryLog != "" {
		return cfg.HistoryLog
	}
	return src.DefaultLogPath()
}
