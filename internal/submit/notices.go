package submit

import (
	"sync"
	"time"
)

// DefaultNoticeTTL is how long a warning stays visible.
const DefaultNoticeTTL = 3 * time.Second

// Notice is a transient warning shown to the user.
type Notice struct {
	Seq     uint64
	Message string
	At      time.Time
}

// Notices holds at most one current warning. Each warning clears itself
// after the TTL unless a newer one replaced it first.
//
// Thread-safety: safe for concurrent use.
type Notices struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	seq     uint64
	current *Notice
	timer   *time.Timer
}

// NewNotices creates a holder. A non-positive ttl uses DefaultNoticeTTL.
func NewNotices(ttl time.Duration) *Notices {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notices{ttl: ttl, now: time.Now}
}

// Warn replaces the current warning with msg and returns its sequence number.
func (n *Notices) Warn(msg string) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	seq := n.seq
	n.current = &Notice{Seq: seq, Message: msg, At: n.now()}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(seq) })
	return seq
}

func (n *Notices) expire(seq uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil && n.current.Seq == seq {
		n.current = nil
		n.timer = nil
	}
}

// Current returns the visible warning, if any.
func (n *Notices) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

// Dismiss clears the visible warning now.
func (n *Notices) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.current = nil
}
