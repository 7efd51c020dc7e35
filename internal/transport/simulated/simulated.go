package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zapcampaign/zapcampaign/internal/transport"
)

type Config struct {
	// SuccessRate is the probability in [0,1] that a send is acknowledged.
	SuccessRate float64
	// SendDelay is the artificial per-send latency.
	SendDelay time.Duration
}

// Client is a stand-in messaging client that emulates the real network:
// configurable success rate, artificial latency and a connection state
// that callers must check before sending.
type Client struct {
	mu     sync.Mutex
	rng    *rand.Rand
	state  transport.ConnectionState
	cfg    Config
	logger *slog.Logger
}

var _ transport.Transport = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.SuccessRate <= 0 || cfg.SuccessRate > 1 {
		cfg.SuccessRate = 0.9
	}
	return &Client{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:    cfg,
		logger: logger,
	}
}

// Connect emulates session pairing and marks the client ready.
func (c *Client) Connect() {
	c.mu.Lock()
	c.state = transport.ConnectionState{Ready: true, Authenticated: true}
	c.mu.Unlock()
	c.logger.Info("simulated messaging session established")
}

// Disconnect drops the session; subsequent dispatches fail their pre-check.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.state = transport.ConnectionState{}
	c.mu.Unlock()
	c.logger.Info("simulated messaging session closed")
}

func (c *Client) ConnectionState() transport.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) SendOne(ctx context.Context, address, content string) (string, error) {
	return c.send(ctx, "send", address)
}

func (c *Client) SendToGroup(ctx context.Context, groupID, content string) (string, error) {
	return c.send(ctx, "group send", groupID)
}

func (c *Client) send(ctx context.Context, op, target string) (string, error) {
	c.mu.Lock()
	state := c.state
	delay := c.cfg.SendDelay
	roll := c.rng.Float64()
	c.mu.Unlock()

	if !state.Usable() {
		return "", fmt.Errorf("%s to %s: session not established", op, target)
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if roll >= c.cfg.SuccessRate {
		return "", fmt.Errorf("%s to %s: rejected by network", op, target)
	}

	deliveryID := uuid.NewString()
	c.logger.Debug("simulated delivery", slog.String("target", target), slog.String("deliveryId", deliveryID))
	return deliveryID, nil
}
