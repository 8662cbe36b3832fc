// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session tracks which authenticated content targets have a live
// sign-in and owns the browser session behind each one. State is
// process-scoped and never persisted; a restart starts signed out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pdiddy/medref/internal/browse"
	"github.com/pdiddy/medref/internal/logging"
	"github.com/pdiddy/medref/pkg/types"
)

// Target names an authenticated content platform.
type Target string

const (
	TargetUpToDate Target = "uptodate"
	TargetMKSAP    Target = "mksap"
)

// ErrNotAuthenticated is returned by With when the target has no session.
var ErrNotAuthenticated = errors.New("not logged in")

// ErrUnknownTarget is returned for targets the pool was not built with.
var ErrUnknownTarget = errors.New("unknown target")

// ParseTarget validates a target name from user input.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetUpToDate, TargetMKSAP:
		return Target(s), nil
	}
	return "", fmt.Errorf("%w: %q (want uptodate or mksap)", ErrUnknownTarget, s)
}

// Site configures one target: how to sign in and how to get a browser.
type Site struct {
	Target Target
	Login  browse.LoginForm

	// NewBrowser returns a fresh browser for the target's session.
	NewBrowser func() browse.Browser
}

// slot owns one target's browser. lock is a one-token semaphore so that
// waiting honours context cancellation; browser is only touched while
// holding it. authenticated is written under lock and read lock-free.
type slot struct {
	site          Site
	lock          chan struct{}
	browser       browse.Browser
	authenticated atomic.Bool
}

// Pool is the set of per-target sessions. Operations on different targets
// run concurrently; operations on the same target are serialized.
type Pool struct {
	slots  map[Target]*slot
	logger *zap.Logger
}

// NewPool builds a pool with one signed-out session per site.
func NewPool(logger *zap.Logger, sites ...Site) *Pool {
	p := &Pool{slots: make(map[Target]*slot, len(sites)), logger: logging.OrNop(logger)}
	for _, s := range sites {
		p.slots[s.Target] = &slot{site: s, lock: make(chan struct{}, 1)}
	}
	return p
}

func (s *slot) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slot) release() { <-s.lock }

// Login signs in to target. A fresh browser session is used for every
// attempt. On success the target is marked authenticated and true is
// returned; any failure marks it signed out, logs the cause and returns
// false. Login never returns an error.
func (p *Pool) Login(ctx context.Context, target Target, creds types.Credentials) bool {
	s, ok := p.slots[target]
	if !ok {
		p.logger.Warn("login for unknown target", zap.String("target", string(target)))
		return false
	}
	if creds.Empty() {
		p.logger.Warn("login skipped: missing credentials", zap.String("target", string(target)))
		return false
	}

	if err := s.acquire(ctx); err != nil {
		p.logger.Warn("login aborted", zap.String("target", string(target)), zap.Error(err))
		return false
	}
	defer s.release()

	s.browser = s.site.NewBrowser()

	ok, err := s.browser.SubmitLogin(ctx, s.site.Login, creds)
	switch {
	case err != nil:
		s.authenticated.Store(false)
		p.logger.Warn("login failed", zap.String("target", string(target)), zap.Error(err))
		return false
	case !ok:
		s.authenticated.Store(false)
		p.logger.Warn("login rejected: no signed-in signal", zap.String("target", string(target)))
		return false
	}

	s.authenticated.Store(true)
	p.logger.Info("logged in", zap.String("target", string(target)))
	return true
}

// Authenticated reports whether target currently has a session. It does
// not wait for an in-flight login or search on the same target.
func (p *Pool) Authenticated(target Target) bool {
	s, ok := p.slots[target]
	return ok && s.authenticated.Load()
}

// With runs fn with exclusive use of target's signed-in browser. It
// returns ErrNotAuthenticated without calling fn when the target has no
// session.
func (p *Pool) With(ctx context.Context, target Target, fn func(browse.Browser) error) error {
	s, ok := p.slots[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if !s.authenticated.Load() || s.browser == nil {
		return fmt.Errorf("%s: %w", target, ErrNotAuthenticated)
	}
	return fn(s.browser)
}

// Logout discards target's session.
func (p *Pool) Logout(ctx context.Context, target Target) error {
	s, ok := p.slots[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	s.authenticated.Store(false)
	s.browser = nil
	return nil
}

// Status reports every target's authentication state.
func (p *Pool) Status() map[Target]bool {
	out := make(map[Target]bool, len(p.slots))
	for t, s := range p.slots {
		out[t] = s.authenticated.Load()
	}
	return out
}

// Targets lists the configured targets in name order.
func (p *Pool) Targets() []Target {
	out := make([]Target, 0, len(p.slots))
	for t := range p.slots {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
