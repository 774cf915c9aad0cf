package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// DriverConfig carries the connection settings a driver needs.
type DriverConfig struct {
	Host string
	Port int

	// Fingerprint optionally pins the gateway TLS certificate.
	Fingerprint string
}

// Driver creates a Dialer for a transport implementation.
type Driver func(cfg DriverConfig) (Dialer, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under name. It panics on duplicates,
// matching database/sql.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if driver == nil {
		panic("gateway: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("gateway: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Open returns a Dialer from the named driver.
func Open(name string, cfg DriverConfig) (Dialer, error) {
	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, name, Drivers())
	}
	return driver(cfg)
}

// Drivers returns the sorted names of registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
