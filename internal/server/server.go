// Package server drives a single TCP connection through the game protocol's
// Handshake, Status, Login and Configuration states, ending in a Transfer to
// a backend server or a disconnect.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/passage/internal/adapter"
	"github.com/udisondev/passage/internal/config"
	"github.com/udisondev/passage/internal/crypto"
	"github.com/udisondev/passage/internal/localization"
	"github.com/udisondev/passage/internal/mojang"
	"github.com/udisondev/passage/internal/ratelimit"
)

// shutdownGrace bounds how long in-flight connections may run after the
// accept loop has stopped.
const shutdownGrace = 10 * time.Second

// Server is the stateless entry-point router. One instance per process.
type Server struct {
	cfg      config.Config
	keyPair  *crypto.KeyPair
	secret   []byte
	limiter  *ratelimit.Limiter // nil when disabled
	adapters adapter.Set
	loc      *localization.Resolver
	sessions *mojang.Client

	listener net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]struct{}

	active atomic.Int64
	total  atomic.Int64
}

// NewServer assembles a server from configuration and resolved adapters.
// The RSA key pair is generated here, once, and shared read-only by every
// connection for the life of the process.
func NewServer(cfg config.Config, adapters adapter.Set) (*Server, error) {
	slog.Info("generating RSA key pair")
	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		keyPair:  keyPair,
		adapters: adapters,
		loc:      localization.NewResolver(cfg.Localization.DefaultLocale, cfg.Localization.Messages),
		sessions: mojang.NewClient(cfg.SessionServer),
		conns:    make(map[net.Conn]struct{}),
	}

	if cfg.AuthSecret != "" {
		s.secret = []byte(cfg.AuthSecret)
	}
	if cfg.RateLimiter.Enabled {
		s.limiter = ratelimit.New(time.Duration(cfg.RateLimiter.Duration)*time.Second, cfg.RateLimiter.Size)
	}

	return s, nil
}

// ActiveConnections reports the number of connections currently in flight.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// Addr returns the bound listen address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Abort force-closes every in-flight connection. Used when a second shutdown
// signal arrives before the grace period ends.
func (s *Server) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Run binds the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Address, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight connections for up to shutdownGrace before force-closing them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	if s.limiter != nil {
		go s.sweepLoop(ctx)
	}

	slog.Info("passage listening", "address", ln.Addr())

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				break
			}
			slog.Error("failed to accept connection", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		slog.Warn("shutdown grace expired, aborting connections", "active", s.active.Load())
		s.Abort()
		<-done
	}
	slog.Info("server stopped", "served", s.total.Load())
	return nil
}

// sweepLoop trims idle rate limiter entries in the background.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.cfg.RateLimiter.Duration) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Sweep()
		}
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.active.Add(1)
	s.total.Add(1)
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.active.Add(-1)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	s.track(conn)
	defer s.untrack(conn)
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in connection handler", "remote", conn.RemoteAddr(), "panic", r)
		}
	}()

	// the whole pre-transfer lifetime runs against one deadline
	deadline := time.Now().Add(time.Duration(s.cfg.Timeout) * time.Second)
	if err := conn.SetDeadline(deadline); err != nil {
		slog.Error("failed to set connection deadline", "remote", conn.RemoteAddr(), "err", err)
		return
	}

	connCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancel()

	c := newConnection(s, conn, deadline)
	if err := c.run(connCtx); err != nil {
		c.fail(err)
	}
}
