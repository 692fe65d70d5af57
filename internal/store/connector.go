package store

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/eugenenazirov/exemple-users/internal/config"
)

const appName = "exemple-users"

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithStateObserver registers a callback invoked on every connection state transition.
func WithStateObserver(fn func(State)) ConnectorOption {
	return func(c *Connector) {
		c.observers = append(c.observers, fn)
	}
}

// Connector establishes the single MongoDB connection of the process.
type Connector struct {
	cfg       config.Config
	logger    *zap.Logger
	observers []func(State)

	mu        sync.Mutex
	attempted bool
	state     *stateTracker
}

// NewConnector prepares a connector for the store described by cfg.
func NewConnector(cfg config.Config, logger *zap.Logger, opts ...ConnectorOption) *Connector {
	c := &Connector{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = newStateTracker(logger, c.observers)
	return c
}

// State returns the current connection state.
func (c *Connector) State() State {
	return c.state.current()
}

// Connect opens the connection, verifies it with a ping against the primary and
// returns the live Connection with its model registry. It may be called once.
func (c *Connector) Connect(ctx context.Context) (*Connection, error) {
	c.mu.Lock()
	if c.attempted {
		c.mu.Unlock()
		return nil, ErrAlreadyConnecting
	}
	c.attempted = true
	c.mu.Unlock()

	c.state.set(StateConnecting)
	c.logger.Debug("connecting to store",
		zap.String("uri", c.cfg.StoreURI()),
		zap.String("database", c.cfg.DBName),
		zap.Bool("auth", c.cfg.HasStoreCredentials()),
	)

	client, err := mongo.Connect(ctx, c.clientOptions())
	if err != nil {
		c.state.set(StateDisconnected)
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, c.cfg.StoreURI(), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DBConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		c.state.set(StateDisconnected)
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnection, c.cfg.StoreURI(), err)
	}

	c.state.set(StateConnected)

	db := client.Database(c.cfg.DBName)
	return &Connection{
		client: client,
		models: Models{
			ExempleUser: newMongoUserModel(db.Collection(userCollection)),
		},
		state: c.state,
	}, nil
}

func (c *Connector) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.cfg.StoreURI()).
		SetAppName(appName).
		SetConnectTimeout(c.cfg.DBConnectTimeout).
		SetServerSelectionTimeout(c.cfg.DBConnectTimeout).
		SetServerMonitor(c.serverMonitor())

	if c.cfg.HasStoreCredentials() {
		opts.SetAuth(options.Credential{
			Username: c.cfg.DBUser,
			Password: c.cfg.DBPassword,
		})
	}
	return opts
}

// serverMonitor maps driver heartbeats onto connected/disconnected transitions.
// Reconnection itself is left to the driver's own server monitoring.
func (c *Connector) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatSucceeded: func(*event.ServerHeartbeatSucceededEvent) {
			c.state.observe(StateConnected)
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			c.logger.Debug("store heartbeat failed", zap.String("actor", "MongoDB"), zap.Error(e.Failure))
			c.state.observe(StateDisconnected)
		},
	}
}

// Connection is the live store handle plus its fixed model registry.
type Connection struct {
	client *mongo.Client
	models Models
	state  *stateTracker

	closeOnce sync.Once
	closeErr  error
}

// Models returns the model registry bound to this connection.
func (c *Connection) Models() Models {
	return c.models
}

// State returns the current connection state.
func (c *Connection) State() State {
	return c.state.current()
}

// Ping checks that the primary is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from the store. Subsequent calls return the first result.
func (c *Connection) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if err := c.client.Disconnect(ctx); err != nil {
			c.closeErr = fmt.Errorf("disconnect store: %w", err)
		}
		c.state.set(StateDisconnected)
	})
	return c.closeErr
}
