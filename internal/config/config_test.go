package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadSeatingConfig_Defaults(t *testing.T) {
	for _, k := range []string{"HOLD_TTL", "HOLD_MAX_TTL", "HOLD_STORE", "HOLD_SWEEP_EVERY", "SEAT_LOCK_BACKEND", "SEAT_LOCK_WAIT", "SEAT_LOCK_LEASE", "SEAT_COLUMNS"} {
		t.Setenv(k, "")
	}
	sc := LoadSeatingConfig()
	if sc.HoldTTL != 5*time.Minute || sc.HoldMaxTTL != 30*time.Minute {
		t.Fatalf("unexpected hold ttl defaults %v / %v", sc.HoldTTL, sc.HoldMaxTTL)
	}
	if sc.HoldStore != "mysql" || sc.LockBackend != "local" {
		t.Fatalf("unexpected backends %q / %q", sc.HoldStore, sc.LockBackend)
	}
	if !reflect.DeepEqual(sc.Columns, []string{"A", "B", "C", "D", "E", "F"}) {
		t.Fatalf("unexpected columns %v", sc.Columns)
	}
}

func TestLoadSeatingConfig_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "45m")
	t.Setenv("HOLD_MAX_TTL", "10m")
	t.Setenv("HOLD_STORE", "Memory")
	t.Setenv("SEAT_LOCK_BACKEND", "redis")
	t.Setenv("SEAT_LOCK_WAIT", "500ms")
	t.Setenv("SEAT_COLUMNS", "a,b,c,d")

	sc := LoadSeatingConfig()
	if sc.HoldTTL != 10*time.Minute {
		t.Fatalf("expected default ttl clamped to max, got %v", sc.HoldTTL)
	}
	if sc.HoldStore != "memory" || sc.LockBackend != "redis" || sc.LockWait != 500*time.Millisecond {
		t.Fatalf("unexpected config %+v", sc)
	}
	if !reflect.DeepEqual(sc.Columns, []string{"A", "B", "C", "D"}) {
		t.Fatalf("unexpected columns %v", sc.Columns)
	}
}

func TestLoadSeatingConfig_UnknownBackends(t *testing.T) {
	t.Setenv("HOLD_STORE", "etcd")
	t.Setenv("SEAT_LOCK_BACKEND", "zookeeper")
	sc := LoadSeatingConfig()
	if sc.HoldStore != "mysql" || sc.LockBackend != "local" {
		t.Fatalf("expected fallbacks, got %q / %q", sc.HoldStore, sc.LockBackend)
	}
}

func TestParseColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"ABCDEF", []string{"A", "B", "C", "D", "E", "F"}},
		{"abc", []string{"A", "B", "C"}},
		{"A, C ,K", []string{"A", "C", "K"}},
		{"123", []string{"A", "B", "C", "D", "E", "F"}},
	}
	for _, tt := range tests {
		if got := parseColumns(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseColumns(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-4")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_BURST", "")

	rc := LoadRateLimitConfig()
	if rc.Capacity != 1 || rc.RefillTokens != 1 {
		t.Fatalf("expected clamped capacity and refill, got %+v", rc)
	}
	if rc.TTL != 10*time.Second {
		t.Fatalf("expected ttl raised to 5 intervals, got %v", rc.TTL)
	}
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "3")
	rc := LoadRedisConfig()
	if rc.Addr != "cache:6380" || rc.DB != 3 || rc.TLS {
		t.Fatalf("unexpected redis config %+v", rc)
	}
}
