package netshare

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultProbeTTL bounds how often the probe actually touches the share.
// A stat on an unreachable SMB share can block for several seconds and the
// probe runs before every potentially-mutating request, so the last answer
// is cached for this long. The TTL is part of the probe's contract.
const DefaultProbeTTL = 2 * time.Second

// Probe answers whether the network root is currently reachable.
// Any filesystem error counts as offline and is never propagated.
type Probe struct {
	root   string
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	checked time.Time
	online  bool
}

// NewProbe creates a probe for the given network root. A non-positive ttl
// falls back to DefaultProbeTTL.
func NewProbe(root string, ttl time.Duration, logger *slog.Logger) *Probe {
	if ttl <= 0 {
		ttl = DefaultProbeTTL
	}
	return &Probe{root: root, ttl: ttl, logger: logger}
}

// Online reports whether the network root is reachable, using the cached
// answer when it is younger than the TTL.
func (p *Probe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.checked.IsZero() && now.Sub(p.checked) < p.ttl {
		return p.online
	}

	info, err := os.Stat(p.root)
	online := err == nil && info.IsDir()
	if online != p.online || p.checked.IsZero() {
		p.logger.Info("connectivity changed", "network_root", p.root, "online", online)
	}
	p.checked = now
	p.online = online
	return online
}
