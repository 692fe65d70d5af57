package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/exemple-users/internal/config"
)

func unreachableConfig(t *testing.T) config.Config {
	t.Helper()

	cfg, err := config.Parse(map[string]string{
		"NODE_ENV":           "test",
		"DB_HOST":            "127.0.0.1",
		"DB_PORT":            "1",
		"DB_CONNECT_TIMEOUT": "200ms",
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return cfg
}

func TestConnectFailsWhenStoreUnreachable(t *testing.T) {
	var states []State
	connector := NewConnector(unreachableConfig(t), zaptest.NewLogger(t),
		WithStateObserver(func(s State) { states = append(states, s) }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connector.Connect(ctx)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if conn != nil {
		t.Fatalf("expected no connection on failure")
	}
	if connector.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", connector.State())
	}
	if len(states) == 0 || states[0] != StateConnecting {
		t.Fatalf("expected connecting transition to be observed, got %v", states)
	}
}

func TestConnectOnlyOnce(t *testing.T) {
	connector := NewConnector(unreachableConfig(t), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _ = connector.Connect(ctx)
	if _, err := connector.Connect(ctx); !errors.Is(err, ErrAlreadyConnecting) {
		t.Fatalf("expected ErrAlreadyConnecting, got %v", err)
	}
}

func TestClientOptionsCredentials(t *testing.T) {
	cfg := unreachableConfig(t)
	if opts := NewConnector(cfg, zaptest.NewLogger(t)).clientOptions(); opts.Auth != nil {
		t.Fatalf("expected no credentials without DB_USER")
	}

	cfg.DBUser = "root"
	cfg.DBPassword = "secret"
	opts := NewConnector(cfg, zaptest.NewLogger(t)).clientOptions()
	if opts.Auth == nil || opts.Auth.Username != "root" || opts.Auth.Password != "secret" {
		t.Fatalf("expected credentials to be applied, got %+v", opts.Auth)
	}
	if opts.ServerMonitor == nil {
		t.Fatalf("expected server monitor to be installed")
	}
}
