package statsd

// Package statsd carries the auth-flow metrics to a StatsD-compatible
// endpoint over UDP. The surface is intentionally small: the flow emits
// counters and timings, nothing else.

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink is what the auth metric emitters write through.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes the StatsD endpoint.
type Config struct {
	Enabled bool
	Address string
	Prefix  string
	Logger  *slog.Logger
}

// Client emits StatsD lines over a single UDP connection. Safe for
// concurrent use; a disabled client swallows writes.
type Client struct {
	prefix string
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	enabled bool
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured endpoint. With Enabled false or an empty
// address it returns a client whose writes are no-ops.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		prefix: cleanName(cfg.Prefix),
		logger: logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}

	c.conn = conn
	c.enabled = true
	return c, nil
}

// Enabled reports whether writes reach the endpoint.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Count increments a counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, strconv.FormatInt(value, 10), "c", tags)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	if c == nil {
		return
	}
	ms := float64(value) / float64(time.Millisecond)
	c.emit(name, strconv.FormatFloat(ms, 'f', -1, 64), "ms", tags)
}

// Close releases the UDP connection and disables further writes.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) emit(name, value, unit string, tags map[string]string) {
	metric := cleanName(name)
	if metric == "" {
		return
	}
	if c.prefix != "" {
		metric = c.prefix + "." + metric
	}
	line := metric + ":" + value + "|" + unit + tagSuffix(tags)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "error", err)
	}
}

// cleanName makes a string safe for the line protocol: the separator
// characters become underscores and stray dots are trimmed.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', ':', '|':
			return '_'
		default:
			return r
		}
	}, s)
	return strings.Trim(s, ".")
}

// tagSuffix renders tags in DogStatsD form, sorted for deterministic lines.
func tagSuffix(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(tags))
	for k, v := range tags {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		pairs = append(pairs, k+":"+strings.TrimSpace(v))
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Strings(pairs)
	return "|#" + strings.Join(pairs, ",")
}
