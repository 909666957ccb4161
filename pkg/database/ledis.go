package database

import (
	"fmt"

	lediscfg "github.com/siddontang/ledisdb/config"
	"github.com/siddontang/ledisdb/ledis"
)

// LedisConfig configures the embedded LedisDB instance used as the on-device store.
type LedisConfig struct {
	DataDir string
	DB      int
}

// OpenLedis opens (creating if needed) an embedded LedisDB under cfg.DataDir and
// selects cfg.DB. The caller owns the returned *ledis.Ledis and must Close it.
func OpenLedis(cfg LedisConfig) (*ledis.Ledis, *ledis.DB, error) {
	if cfg.DataDir == "" {
		return nil, nil, fmt.Errorf("open ledis: data dir is required")
	}

	conf := lediscfg.NewConfigDefault()
	conf.DataDir = cfg.DataDir

	l, err := ledis.Open(conf)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledis at %s: %w", cfg.DataDir, err)
	}

	db, err := l.Select(cfg.DB)
	if err != nil {
		l.Close()
		return nil, nil, fmt.Errorf("select ledis db %d: %w", cfg.DB, err)
	}

	return l, db, nil
}
