package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/neo-dashboard/internal/domain/analytics/entity"
	"github.com/vadim/neo-dashboard/internal/domain/analytics/policy"
)

// Sessions tracks one refresh policy per mounted analytics page
type Sessions struct {
	source   policy.Source
	store    policy.StateStore
	archiver policy.SnapshotArchiver
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	policy   *policy.Policy
	owner    string
	lastSeen time.Time
}

// ownerOf fingerprints a bearer token. Sessions and persisted state are only
// visible to callers presenting the same token.
func ownerOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func stateKey(owner, accountKey string) string {
	return owner + "|" + accountKey
}

// Config holds optional collaborators of the session registry
type Config struct {
	Store    policy.StateStore
	Archiver policy.SnapshotArchiver
	Logger   *slog.Logger
	Now      func() time.Time
}

// New creates a new session registry
func New(source policy.Source, cfg Config) *Sessions {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Sessions{
		source:   source,
		store:    cfg.Store,
		archiver: cfg.Archiver,
		logger:   cfg.Logger,
		now:      cfg.Now,
		sessions: make(map[string]*session),
	}
}

// MountOutput represents output from mounting a page
type MountOutput struct {
	SessionID string       `json:"session_id"`
	State     entity.State `json:"state"`
}

// Mount registers a new page instance and performs its cache-first read.
// The session is kept even when the read fails so the page can retry with Refresh.
func (s *Sessions) Mount(ctx context.Context, token, accountKey string) (*MountOutput, error) {
	if accountKey == "" {
		return nil, entity.ErrEmptyAccountKey
	}

	owner := ownerOf(token)
	opts := []policy.Option{
		policy.WithLogger(s.logger),
		policy.WithClock(s.now),
		policy.WithStateKey(stateKey(owner, accountKey)),
	}
	if s.store != nil {
		opts = append(opts, policy.WithStateStore(s.store))
	}
	if s.archiver != nil {
		opts = append(opts, policy.WithArchiver(s.archiver))
	}

	id := uuid.New().String()
	p := policy.New(s.source, token, accountKey, opts...)

	s.mu.Lock()
	s.sessions[id] = &session{policy: p, owner: owner, lastSeen: s.now()}
	s.mu.Unlock()

	s.logger.Info("analytics page mounted", "session_id", id, "account_key", accountKey)

	state, err := p.OnMount(ctx)
	return &MountOutput{SessionID: id, State: state}, err
}

// Refresh runs a user-triggered refresh on the session's page
func (s *Sessions) Refresh(ctx context.Context, token, id string) (entity.State, error) {
	p, err := s.touch(token, id)
	if err != nil {
		return entity.State{}, err
	}

	state, err := p.Refresh(ctx)
	if err != nil {
		s.logger.Info("analytics refresh not applied", "session_id", id, "error", err)
	}
	return state, err
}

// Get returns the current state of a session
func (s *Sessions) Get(token, id string) (entity.State, error) {
	p, err := s.touch(token, id)
	if err != nil {
		return entity.State{}, err
	}
	return p.State(), nil
}

// Unmount disposes of a session; a pending request's result is discarded
func (s *Sessions) Unmount(token, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || !sess.ownedBy(token) {
		s.mu.Unlock()
		return entity.ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	sess.policy.Dispose()
	s.logger.Info("analytics page unmounted", "session_id", id)
	return nil
}

// LastState returns the last state persisted for an account key by a caller with the same token
func (s *Sessions) LastState(ctx context.Context, token, accountKey string) (*entity.State, error) {
	if accountKey == "" {
		return nil, entity.ErrEmptyAccountKey
	}
	if s.store == nil {
		return nil, entity.ErrSessionNotFound
	}

	state, err := policy.LoadState(ctx, s.store, stateKey(ownerOf(token), accountKey))
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, entity.ErrSessionNotFound
	}
	return state, nil
}

// Sweep disposes of sessions not used for longer than idle and returns how many were removed
func (s *Sessions) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.policy.Dispose()
	}

	return len(expired), nil
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// touch returns the session's policy; a session owned by another token is reported as missing
func (s *Sessions) touch(token, id string) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || !sess.ownedBy(token) {
		return nil, entity.ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess.policy, nil
}

func (sess *session) ownedBy(token string) bool {
	return subtle.ConstantTimeCompare([]byte(sess.owner), []byte(ownerOf(token))) == 1
}
