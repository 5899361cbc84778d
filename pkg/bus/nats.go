package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
)

// NATSConfig holds NATS bridge configuration.
type NATSConfig struct {
	URL             string        `yaml:"url"`
	Subject         string        `yaml:"subject"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ReconnectWait   time.Duration `yaml:"reconnect_wait"`
	MaxReconnects   int           `yaml:"max_reconnects"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxPingsOut     int           `yaml:"max_pings_out"`
	ReconnectBuffer int           `yaml:"reconnect_buffer"`
}

// DefaultNATSConfig returns a default NATS bridge configuration.
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:             "nats://localhost:4222",
		Subject:         "dashboard.refresh",
		ConnectTimeout:  5 * time.Second,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   10,
		PingInterval:    2 * time.Minute,
		MaxPingsOut:     2,
		ReconnectBuffer: 5 * 1024 * 1024, // 5MB
	}
}

// refreshMessage is the wire form of a refresh broadcast. Origin identifies
// the sending bridge so a process can skip its own messages.
type refreshMessage struct {
	Actions []string `json:"actions"`
	Origin  string   `json:"origin,omitempty"`
}

// Bridge extends the in-process bus across process boundaries: refresh
// broadcasts published through the bridge go to the local bus and to a NATS
// subject, and refresh messages from other dashboard processes are
// re-injected into the local bus.
type Bridge struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	bus     *Bus
	id      string
	logger  *slog.Logger
}

// NewBridge connects to NATS and starts relaying the subject into the local
// bus.
func NewBridge(config *NATSConfig, local *Bus, logger *slog.Logger) (*Bridge, error) {
	if config == nil {
		config = DefaultNATSConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	options := []nats.Option{
		nats.Timeout(config.ConnectTimeout),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.PingInterval(config.PingInterval),
		nats.MaxPingsOutstanding(config.MaxPingsOut),
		nats.ReconnectBufSize(config.ReconnectBuffer),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(config.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	bridge := &Bridge{
		conn:    conn,
		subject: config.Subject,
		bus:     local,
		id:      newBridgeID(),
		logger:  logger,
	}

	sub, err := conn.Subscribe(config.Subject, bridge.handleRemote)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", config.Subject, err)
	}
	bridge.sub = sub

	logger.Info("NATS refresh bridge started",
		"url", config.URL,
		"subject", config.Subject,
		"connected_url", conn.ConnectedUrl())

	return bridge, nil
}

// newBridgeID returns a unique origin identifier. Uniqueness matters: two
// bridges sharing an ID would skip each other's messages.
func newBridgeID() string {
	return nuid.Next()
}

// PublishRefresh broadcasts a refresh notification locally and to the NATS
// subject. It satisfies the same contract as Bus.PublishRefresh.
func (b *Bridge) PublishRefresh(actions ...string) {
	b.bus.PublishRefresh(actions...)

	if b.conn == nil || b.conn.IsClosed() {
		b.logger.Warn("NATS connection unavailable, refresh not relayed")
		return
	}

	data, err := json.Marshal(refreshMessage{Actions: actions, Origin: b.id})
	if err != nil {
		b.logger.Error("Failed to marshal refresh message", "error", err)
		return
	}

	if err := b.conn.Publish(b.subject, data); err != nil {
		b.logger.Error("Failed to relay refresh message", "error", err)
		return
	}

	b.logger.Debug("Relayed refresh", "subject", b.subject, "actions", actions)
}

// handleRemote re-injects refresh messages from other processes into the
// local bus. Messages this bridge published itself are skipped.
func (b *Bridge) handleRemote(msg *nats.Msg) {
	var remote refreshMessage
	if err := json.Unmarshal(msg.Data, &remote); err != nil {
		b.logger.Warn("Ignoring malformed refresh message", "error", err)
		return
	}
	if remote.Origin == b.id {
		return
	}

	b.logger.Debug("Received remote refresh", "actions", remote.Actions, "origin", remote.Origin)
	b.bus.PublishRefresh(remote.Actions...)
}

// IsHealthy checks if the NATS connection is healthy.
func (b *Bridge) IsHealthy() error {
	if b.conn == nil {
		return fmt.Errorf("NATS connection is nil")
	}
	if b.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	return nil
}

// Close unsubscribes and gracefully closes the NATS connection.
func (b *Bridge) Close() error {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			b.logger.Warn("Failed to unsubscribe on close", "error", err)
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
			b.logger.Warn("Failed to flush messages on close", "error", err)
		}
		b.conn.Close()
		b.logger.Info("NATS refresh bridge closed")
	}
	return nil
}
