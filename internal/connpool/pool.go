// Package connpool implements a per-(host,port) connection pool of
// *smtpclient.Client sessions, generalizing the single-map-of-slices design
// in internal/smtppool into the available/in-use bookkeeping and background
// idle reaper the spec calls for.
package connpool

import (
	"fmt"
	"sync"
	"time"

	"github.com/optimode/mailverify/internal/smtpclient"
)

// Config controls pool sizing, idle handling, and the underlying client's
// timeouts.
type Config struct {
	// EnablePooling gates whether Acquire reuses idle connections at all.
	// false means one fresh, non-poolable socket per Acquire call — spec's
	// enable_connection_pooling: false knob for operators who'd rather pay
	// a TCP/TLS handshake per probe than risk state leaking between them.
	EnablePooling   bool
	MaxPerKey       int
	IdleTimeout     time.Duration
	ReapInterval    time.Duration
	HealthFreshness time.Duration // last_used_at window within which no NOOP probe is needed
	ClientConfig    smtpclient.Config
}

// DefaultConfig matches spec §4.6: pooling on, max 3 per key, 60s idle
// timeout, 30s health-check freshness window, 30s reaper tick.
func DefaultConfig() Config {
	return Config{
		EnablePooling:   true,
		MaxPerKey:       3,
		IdleTimeout:     60 * time.Second,
		ReapInterval:    30 * time.Second,
		HealthFreshness: 30 * time.Second,
		ClientConfig:    smtpclient.DefaultConfig(),
	}
}

type pooledSession struct {
	client     *smtpclient.Client
	host       string
	port       string
	lastUsedAt time.Time
}

type keyState struct {
	available []*pooledSession // stack, most-recently-returned at the back
	inUse     map[*pooledSession]struct{}
	created   int
}

// Pool hands out SMTP sessions keyed by "host:port", reusing idle ones when
// healthy and enforcing a per-key cap.
type Pool struct {
	cfg Config

	mu     sync.Mutex
	keys   map[string]*keyState
	closed bool

	stopReaper chan struct{}
	reaperDone chan struct{}
}

// New constructs a Pool and starts its background reaper.
func New(cfg Config) *Pool {
	if cfg.MaxPerKey <= 0 {
		cfg.MaxPerKey = 3
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	if cfg.HealthFreshness <= 0 {
		cfg.HealthFreshness = 30 * time.Second
	}
	p := &Pool{
		cfg:        cfg,
		keys:       make(map[string]*keyState),
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

// Session is a handle returned by Acquire. Poolable is false for overflow
// (above MaxPerKey) sessions, which Release always closes rather than
// returning to the pool.
type Session struct {
	Client   *smtpclient.Client
	Poolable bool
	host     string
	port     string
	internal *pooledSession
	isNew    bool
}

// IsNew reports whether the caller must still dial and read the banner
// (false for a session handed back from the idle pool).
func (s *Session) IsNew() bool { return s.isNew }

func key(host, port string) string { return fmt.Sprintf("%s:%s", host, port) }

// Acquire returns a session for host:port, reusing a healthy idle one when
// available, opening a new pooled connection under the per-key cap, or
// handing out a non-pooled overflow session otherwise.
func (p *Pool) Acquire(host, port string) (*Session, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("connpool: pool is closed")
	}

	if !p.cfg.EnablePooling {
		p.mu.Unlock()
		return &Session{Client: smtpclient.New(p.cfg.ClientConfig, host), Poolable: false, host: host, port: port, isNew: true}, nil
	}

	k := key(host, port)
	ks, ok := p.keys[k]
	if !ok {
		ks = &keyState{inUse: make(map[*pooledSession]struct{})}
		p.keys[k] = ks
	}

	for len(ks.available) > 0 {
		ps := ks.available[len(ks.available)-1]
		ks.available = ks.available[:len(ks.available)-1]

		if p.healthyLocked(ps) {
			ks.inUse[ps] = struct{}{}
			p.mu.Unlock()
			return &Session{Client: ps.client, Poolable: true, host: host, port: port, internal: ps, isNew: false}, nil
		}
		ps.client.Close()
		ks.created--
	}

	if ks.created < p.cfg.MaxPerKey {
		ps := &pooledSession{client: smtpclient.New(p.cfg.ClientConfig, host), host: host, port: port}
		ks.inUse[ps] = struct{}{}
		ks.created++
		p.mu.Unlock()
		return &Session{Client: ps.client, Poolable: true, host: host, port: port, internal: ps, isNew: true}, nil
	}
	p.mu.Unlock()

	return &Session{Client: smtpclient.New(p.cfg.ClientConfig, host), Poolable: false, host: host, port: port, isNew: true}, nil
}

// healthyLocked implements spec §4.6's health check. Caller holds p.mu. A
// session used within HealthFreshness is trusted without a probe; otherwise
// a NOOP must succeed within 2s.
func (p *Pool) healthyLocked(ps *pooledSession) bool {
	if time.Since(ps.lastUsedAt) < p.cfg.HealthFreshness {
		return true
	}
	resp, err := ps.client.Noop()
	if err != nil {
		return false
	}
	return resp.Code >= 200 && resp.Code < 400
}

// Release returns a session to the pool, or closes it when it is
// non-poolable, when its client is already closed, or when the pool itself
// has been closed.
func (p *Pool) Release(s *Session) {
	if !s.Poolable {
		s.Client.Quit()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ks := p.keys[key(s.host, s.port)]
	delete(ks.inUse, s.internal)

	if p.closed || s.Client.State() == smtpclient.Closed {
		s.Client.Quit()
		if ks.created > 0 {
			ks.created--
		}
		return
	}

	s.internal.lastUsedAt = time.Now()
	ks.available = append(ks.available, s.internal)
}

// Stats is the pool-wide observability snapshot spec.md §6 names as a
// read-only accessor.
type Stats struct {
	TotalPools       int
	TotalConnections int
	Available        int
	InUse            int
}

// Stats reports pool occupancy across every key.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{TotalPools: len(p.keys)}
	for _, ks := range p.keys {
		s.Available += len(ks.available)
		s.InUse += len(ks.inUse)
		s.TotalConnections += ks.created
	}
	return s
}

// Close shuts down every pooled session and stops the reaper.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	for k, ks := range p.keys {
		for _, ps := range ks.available {
			ps.client.Quit()
		}
		for ps := range ks.inUse {
			ps.client.Quit()
		}
		delete(p.keys, k)
	}
	p.mu.Unlock()

	close(p.stopReaper)
	<-p.reaperDone
	return nil
}

func (p *Pool) reapLoop() {
	defer close(p.reaperDone)
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopReaper:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for k, ks := range p.keys {
		kept := ks.available[:0]
		for _, ps := range ks.available {
			if now.Sub(ps.lastUsedAt) > p.cfg.IdleTimeout {
				ps.client.Quit()
				ks.created--
				continue
			}
			kept = append(kept, ps)
		}
		ks.available = kept

		if len(ks.available) == 0 && len(ks.inUse) == 0 {
			delete(p.keys, k)
		}
	}
}
