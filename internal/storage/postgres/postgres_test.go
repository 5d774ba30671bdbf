package postgres

import (
	"strings"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	if cfg.maxOpen() != 10 {
		t.Errorf("maxOpen() = %d, want 10", cfg.maxOpen())
	}
	if cfg.maxIdle() != 2 {
		t.Errorf("maxIdle() = %d, want 2", cfg.maxIdle())
	}
	if cfg.maxLifetime() != 30*time.Minute {
		t.Errorf("maxLifetime() = %v, want 30m", cfg.maxLifetime())
	}

	cfg = Config{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}
	if cfg.maxOpen() != 3 || cfg.maxIdle() != 1 || cfg.maxLifetime() != time.Minute {
		t.Errorf("explicit values not honored: %+v", cfg)
	}
}

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(Config{}, nil); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestOpen_MalformedDSN(t *testing.T) {
	_, err := Open(Config{DSN: "postgres://hundreds@localhost:notaport/hundreds"}, nil)
	if err == nil {
		t.Fatal("expected error for malformed DSN")
	}
	if !strings.Contains(err.Error(), "parsing postgres dsn") {
		t.Errorf("err = %v, want dsn parse error", err)
	}
}
