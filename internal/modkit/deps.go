// Package modkit carries the shared dependencies handed to every service module
package modkit

import (
	"newsroom/internal/modkit/repokit"
	"newsroom/internal/platform/config"
	"newsroom/internal/platform/logger"
	"newsroom/internal/platform/store"
)

// Deps is built once in main and passed by value to module constructors.
// CH is nil when ClickHouse is not configured
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}

// FromStore fills the backend fields from an opened store
func FromStore(st *store.Store, cfg config.Conf, log logger.Logger) Deps {
	return Deps{Log: log, Cfg: cfg, PG: st.PG, CH: st.CH}
}
