package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/database"
)

// writeConfig writes a simulator configuration rooted in a temp directory and
// returns its path and the database path.
func writeConfig(t *testing.T, gateway string) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	dbPath = filepath.Join(dir, "klf200.db")

	content := `
gateway:
` + gateway + `
  reconnect_delay: 50ms
  refresh_interval: 1h

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

// TestParseFlags_Default verifies the default config path.
func TestParseFlags_Default(t *testing.T) {
	t.Setenv("KLF200_CONFIG", "")
	t.Setenv("KLF200_LOG_LEVEL", "")

	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.configPath != defaultConfigPath {
		t.Errorf("configPath = %q, want %q", opts.configPath, defaultConfigPath)
	}
	if opts.logLevel != "" {
		t.Errorf("logLevel = %q, want empty", opts.logLevel)
	}
}

// TestParseFlags_EnvOverride verifies environment variable fallback.
func TestParseFlags_EnvOverride(t *testing.T) {
	t.Setenv("KLF200_CONFIG", "/etc/klf200/config.yaml")
	t.Setenv("KLF200_LOG_LEVEL", "debug")

	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.configPath != "/etc/klf200/config.yaml" {
		t.Errorf("configPath = %q", opts.configPath)
	}
	if opts.logLevel != "debug" {
		t.Errorf("logLevel = %q", opts.logLevel)
	}
}

// TestParseFlags_FlagWinsOverEnv verifies explicit flags take precedence.
func TestParseFlags_FlagWinsOverEnv(t *testing.T) {
	t.Setenv("KLF200_CONFIG", "/etc/klf200/config.yaml")

	opts, err := parseFlags([]string{"-config", "local.yaml", "-log-level", "warn"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.configPath != "local.yaml" || opts.logLevel != "warn" {
		t.Errorf("opts = %+v", opts)
	}
}

// TestParseFlags_Unknown verifies unknown flags are rejected.
func TestParseFlags_Unknown(t *testing.T) {
	if _, err := parseFlags([]string{"-verbose"}); err == nil {
		t.Error("parseFlags() should reject unknown flags")
	}
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: "/nonexistent/path/config.yaml"})
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want config failure", err)
	}
}

// TestRun_InvalidLogLevelOverride verifies the flag override is validated.
func TestRun_InvalidLogLevelOverride(t *testing.T) {
	configPath, _ := writeConfig(t, `  driver: simulator`)

	err := run(context.Background(), options{configPath: configPath, logLevel: "chatty"})
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("run() error = %v, want logging.level failure", err)
	}
}

// TestRun_UnknownDriver verifies an unregistered gateway driver is reported.
func TestRun_UnknownDriver(t *testing.T) {
	configPath, _ := writeConfig(t, `  driver: serial
  host: 192.168.1.50`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: configPath})
	if err == nil || !strings.Contains(err.Error(), "gateway driver") {
		t.Fatalf("run() error = %v, want driver failure", err)
	}
}

// TestRun_SimulatorStartupAndShutdown runs the bridge against the demo
// installation and checks the persisted tree after shutdown.
func TestRun_SimulatorStartupAndShutdown(t *testing.T) {
	configPath, dbPath := writeConfig(t, `  driver: simulator`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, options{configPath: configPath}) }()

	deadline := time.Now().Add(10 * time.Second)
	for !connected(t, dbPath) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("bridge did not connect; run() = %v", <-errCh)
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if got := stateValue(t, dbPath, "info.connection"); got != "false" {
		t.Errorf("info.connection = %s after shutdown, want false", got)
	}
	if got := stateValue(t, dbPath, "products.productsFound"); got != "3" {
		t.Errorf("products.productsFound = %s, want 3", got)
	}
}

// connected reports whether the persisted connection indicator is true.
func connected(t *testing.T, dbPath string) bool {
	t.Helper()
	if _, err := os.Stat(dbPath); err != nil {
		return false
	}
	return stateValue(t, dbPath, "info.connection") == "true"
}

// stateValue reads the JSON-encoded value of a state from the database file.
func stateValue(t *testing.T, dbPath, id string) string {
	t.Helper()
	db, err := database.Open(database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening %s: %v", dbPath, err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	var value string
	err = db.QueryRowContext(context.Background(), "SELECT value FROM state_values WHERE id = ?", id).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}
