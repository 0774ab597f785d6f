package transport

import (
	"context"
	"time"
)

// Connectivity reports whether the API can be reached right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Static is a fixed connectivity answer, used for forced offline mode.
type Static bool

// Online returns the fixed answer.
func (s Static) Online(context.Context) bool { return bool(s) }

// Probe checks connectivity by pinging the API.
type Probe struct {
	Client  *Client
	Timeout time.Duration
}

// NewProbe creates a probe with a short timeout.
func NewProbe(c *Client) *Probe {
	return &Probe{Client: c, Timeout: 3 * time.Second}
}

// Online pings the API and reports whether it answered.
func (p *Probe) Online(ctx context.Context) bool {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return p.Client.Ping(ctx) == nil
}
