package influxdb_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/config"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "klf200-dev-token",
		Org:           "home",
		Bucket:        "klf200",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestStatePoint(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		id        string
		value     any
		wantOK    bool
		wantField string
		wantValue any
		wantTags  map[string]string
	}{
		{
			name: "percentage", id: "products.1.currentPosition", value: 50,
			wantOK: true, wantField: "value", wantValue: 50.0,
			wantTags: map[string]string{"id": "products.1.currentPosition", "namespace": "products", "object": "1", "field": "currentPosition"},
		},
		{
			name: "boolean", id: "info.connection", value: true,
			wantOK: true, wantField: "state", wantValue: true,
			wantTags: map[string]string{"id": "info.connection", "namespace": "info", "field": "connection"},
		},
		{
			name: "float", id: "gateway.GatewayState", value: 2.0,
			wantOK: true, wantField: "value", wantValue: 2.0,
			wantTags: map[string]string{"id": "gateway.GatewayState", "namespace": "gateway", "field": "GatewayState"},
		},
		{name: "string", id: "products.1.serialNumber", value: "aa:bb", wantOK: false},
		{name: "nil", id: "products.1.timestamp", value: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, ok := influxdb.StatePoint(tt.id, tt.value, ts)
			if ok != tt.wantOK {
				t.Fatalf("StatePoint() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}

			if point.Name() != influxdb.Measurement {
				t.Errorf("Name() = %q, want %q", point.Name(), influxdb.Measurement)
			}
			if !point.Time().Equal(ts) {
				t.Errorf("Time() = %v, want %v", point.Time(), ts)
			}

			tags := make(map[string]string)
			for _, tag := range point.TagList() {
				tags[tag.Key] = tag.Value
			}
			if len(tags) != len(tt.wantTags) {
				t.Errorf("tags = %v, want %v", tags, tt.wantTags)
			}
			for k, v := range tt.wantTags {
				if tags[k] != v {
					t.Errorf("tag %s = %q, want %q", k, tags[k], v)
				}
			}

			fields := point.FieldList()
			if len(fields) != 1 || fields[0].Key != tt.wantField || fields[0].Value != tt.wantValue {
				t.Errorf("fields = %+v, want %s=%v", fields, tt.wantField, tt.wantValue)
			}
		})
	}
}

func TestWriteState(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })

	if !client.WriteState("products.1.currentPosition", 50, time.Now()) {
		t.Error("WriteState() = false for a numeric value")
	}
	if client.WriteState("products.1.serialNumber", "aa:bb", time.Now()) {
		t.Error("WriteState() = true for a string value")
	}
	client.Flush()

	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WriteState("info.connection", true, time.Now())

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if client.WriteState("info.connection", false, time.Now()) {
		t.Error("WriteState() = true after Close()")
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestWriteErrorsWrapSentinel(t *testing.T) {
	skipIfNoInfluxDB(t)

	cfg := testConfig()
	cfg.Bucket = "klf200-missing-bucket"
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	client.WriteState("products.1.currentPosition", 10, time.Now())
	client.Flush()

	select {
	case err := <-errs:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("write error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Skip("server accepted writes to the missing bucket")
	}
}

func TestClose_Twice(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
