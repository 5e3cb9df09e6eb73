package recordstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Opener creates a connected Store from a Config.
type Opener func(ctx context.Context, cfg Config) (Store, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Opener{
		"sqlite":   openSQL,
		"mysql":    openSQL,
		"mssql":    openSQL,
		"oracle":   openSQL,
		"postgres": openPostgres,
		"rest":     openREST,
	}
)

// RegisterDriver makes an Opener available under the given driver name,
// replacing any existing registration.
func RegisterDriver(driver string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[driver] = open
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for d := range drivers {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}

// Open connects a Store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driversMu.RLock()
	open, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, Drivers())
	}

	cfg.DSN = SanitizeDSN(cfg.Driver, cfg.DSN)
	s, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s record store: %w", cfg.Driver, err)
	}
	return s, nil
}
