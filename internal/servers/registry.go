package servers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"csrcon/internal/rcon"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger, also handed to every connection.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithRetryPolicy sets the status retry policy for new servers.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Registry) { r.retry = p }
}

// WithConnectTimeout bounds one shared connect attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Registry) { r.connectTimeout = d }
}

// WithConnOptions adds options for every new RCON connection.
func WithConnOptions(opts ...rcon.Option) Option {
	return func(r *Registry) { r.connOpts = append(r.connOpts, opts...) }
}

// Registry maps server ids to connected servers. Servers are created and
// connected on first use and replaced once their connection is terminal.
type Registry struct {
	configs        map[int]Config
	retry          RetryPolicy
	connOpts       []rcon.Option
	connectTimeout time.Duration
	log            *zap.Logger

	connecting singleflight.Group

	mu      sync.Mutex
	servers map[int]*Server
}

// NewRegistry returns a registry over configs. Nothing is dialed yet.
func NewRegistry(configs []Config, opts ...Option) *Registry {
	r := &Registry{
		configs:        make(map[int]Config, len(configs)),
		retry:          DefaultRetryPolicy,
		connectTimeout: DefaultConnectTimeout,
		log:            zap.NewNop(),
		servers:        make(map[int]*Server),
	}
	for _, c := range configs {
		r.configs[c.ID] = c
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configs returns the configured servers ordered by id.
func (r *Registry) Configs() []Config {
	list := make([]Config, 0, len(r.configs))
	for _, c := range r.configs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Get returns the connected server for id, connecting it if needed.
// Concurrent callers share one connect attempt, which outlives any single
// caller's ctx; a failed attempt is not remembered.
func (r *Registry) Get(ctx context.Context, id int) (*Server, error) {
	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("server #%d: %w", id, ErrUnknownServer)
	}

	if s := r.live(id); s != nil {
		return s, nil
	}

	ch := r.connecting.DoChan(strconv.Itoa(id), func() (any, error) {
		if s := r.live(id); s != nil {
			return s, nil
		}
		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.connectTimeout)
		defer cancel()

		s := r.newServer(cfg)
		if err := s.Connect(dialCtx); err != nil {
			return nil, err
		}
		go r.watch(s)

		r.mu.Lock()
		r.servers[id] = s
		r.mu.Unlock()
		return s, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Server), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// live returns the cached server when its connection is still usable.
func (r *Registry) live(id int) *Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return nil
	}
	if s.State().Terminal() {
		delete(r.servers, id)
		return nil
	}
	return s
}

func (r *Registry) newServer(cfg Config) *Server {
	opts := append([]rcon.Option{rcon.WithLogger(r.log)}, r.connOpts...)
	conn := rcon.NewConn(cfg.ID, cfg.Addr(), cfg.Password, opts...)
	return NewServer(cfg, conn, r.retry, r.log)
}

// watch logs connection events until the subscription ends.
func (r *Registry) watch(s *Server) {
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()
	for ev := range events {
		switch ev.Kind {
		case rcon.EventError:
			r.log.Error("server error", zap.Int("server", ev.ServerID), zap.Error(ev.Err))
		case rcon.EventEnd:
			r.log.Info("server connection ended", zap.Int("server", ev.ServerID))
		}
	}
}

// Close disconnects and forgets the server for id, if connected.
func (r *Registry) Close(id int) error {
	r.mu.Lock()
	s, ok := r.servers[id]
	delete(r.servers, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// CloseAll disconnects every server.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	list := make([]*Server, 0, len(r.servers))
	for id, s := range r.servers {
		list = append(list, s)
		delete(r.servers, id)
	}
	r.mu.Unlock()

	for _, s := range list {
		if err := s.Close(); err != nil {
			r.log.Warn("close failed", zap.Int("server", s.ID()), zap.Error(err))
		}
	}
}

// Connected returns the ids with a cached server, ordered.
func (r *Registry) Connected() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.servers))
	for id := range r.servers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// evictTerminal drops servers whose connection can no longer be used.
func (r *Registry) evictTerminal() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []int
	for id, s := range r.servers {
		if s.State().Terminal() {
			delete(r.servers, id)
			evicted = append(evicted, id)
		}
	}
	sort.Ints(evicted)
	return evicted
}
