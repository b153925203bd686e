package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vadim/neo-dashboard/internal/domain/analytics/entity"
)

// Source defines the interface for the two analytics endpoints
// This interface is defined here (consumer) not in the upstream package (provider)
type Source interface {
	GetAnalytics(ctx context.Context, token string, cached bool) (*entity.Payload, error)
}

// LimitError is implemented by upstream errors that can tell a spent quota apart
// from other failures
type LimitError interface {
	error
	IsLimitExceeded() bool
}

// QuotaReporter is implemented by upstream errors whose body still carried counters
type QuotaReporter interface {
	Quota() (used, remaining int, ok bool)
}

// StateStore persists page state snapshots
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// SnapshotArchiver keeps a copy of every freshly computed payload
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, key string, payload []byte) error
}

// Option configures a Policy
type Option func(*Policy)

// WithStateStore persists state after every transition
func WithStateStore(s StateStore) Option {
	return func(p *Policy) {
		p.store = s
	}
}

// WithStateKey stores state under k instead of the account key
func WithStateKey(k string) Option {
	return func(p *Policy) {
		if k != "" {
			p.stateKey = k
		}
	}
}

// WithArchiver archives fresh payloads
func WithArchiver(a SnapshotArchiver) Option {
	return func(p *Policy) {
		p.archiver = a
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the clock used for UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// Policy is the cache-first, quota-gated refresh state machine of one mounted page.
// Quota is only ever spent by an explicit Refresh; mounting reads the cache.
type Policy struct {
	source   Source
	token    string
	key      string
	stateKey string
	store    StateStore
	archiver SnapshotArchiver
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	state         entity.State
	mounted       bool
	mountInFlight bool
	inFlight      bool
	disposed      bool
	seq           uint64

	// persistMu orders store writes; a snapshot older than the last written one is skipped
	persistMu    sync.Mutex
	persistedSeq uint64
}

// New creates the refresh policy of one page instance for the given account key
func New(source Source, token, key string, opts ...Option) *Policy {
	p := &Policy{
		source:   source,
		token:    token,
		key:      key,
		stateKey: key,
		logger:   slog.Default(),
		now:      time.Now,
		state:    entity.NewState(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Key returns the account key the policy persists under
func (p *Policy) Key() string {
	return p.key
}

// State returns a copy of the current state
func (p *Policy) State() entity.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// OnMount reads the cache endpoint once and moves to showing_cache or showing_empty.
// Calling it again returns the current state without another request.
func (p *Policy) OnMount(ctx context.Context) (entity.State, error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return entity.State{}, entity.ErrDisposed
	}
	if p.mounted || p.mountInFlight {
		s := p.state.Clone()
		p.mu.Unlock()
		return s, nil
	}
	p.mountInFlight = true
	p.mu.Unlock()

	payload, err := p.source.GetAnalytics(ctx, p.token, true)

	p.mu.Lock()
	p.mountInFlight = false
	if p.disposed {
		p.mu.Unlock()
		p.logger.Debug("discarding analytics mount result after unmount", "key", p.key)
		return entity.State{}, entity.ErrDisposed
	}
	p.mounted = true

	var outErr error
	switch {
	case err != nil && isLimitExceeded(err):
		p.applyLimitExceeded(err)
		outErr = entity.ErrQuotaExceeded
	case err != nil:
		p.applyFailure(err)
		outErr = fmt.Errorf("%w: %w", entity.ErrUpstream, err)
	default:
		p.applyCache(payload)
	}
	s, seq := p.snapshot()
	p.mu.Unlock()

	p.persist(ctx, seq, s)
	return s, outErr
}

// Refresh spends one unit of quota on a fresh computation.
// It makes no request when the quota is spent or another refresh is pending.
func (p *Policy) Refresh(ctx context.Context) (entity.State, error) {
	p.mu.Lock()
	switch {
	case p.disposed:
		p.mu.Unlock()
		return entity.State{}, entity.ErrDisposed
	case !p.mounted:
		p.mu.Unlock()
		return entity.State{}, entity.ErrNotMounted
	case p.state.QuotaExceeded:
		p.state.Message = entity.MessageQuotaExceeded
		p.state.RefreshEnabled = false
		s := p.state.Clone()
		p.mu.Unlock()
		return s, entity.ErrQuotaExceeded
	case p.inFlight:
		s := p.state.Clone()
		p.mu.Unlock()
		return s, entity.ErrRefreshInFlight
	}
	p.inFlight = true
	previous := p.state
	p.state.Phase = entity.PhaseRefreshing
	p.state.RefreshEnabled = false
	p.mu.Unlock()

	payload, err := p.source.GetAnalytics(ctx, p.token, false)

	p.mu.Lock()
	p.inFlight = false
	if p.disposed {
		p.mu.Unlock()
		p.logger.Debug("discarding analytics refresh result after unmount", "key", p.key)
		return entity.State{}, entity.ErrDisposed
	}

	var outErr error
	switch {
	case err != nil && isLimitExceeded(err):
		p.state = previous
		p.applyLimitExceeded(err)
		outErr = entity.ErrQuotaExceeded
	case err != nil:
		p.state = previous
		p.applyFailure(err)
		outErr = fmt.Errorf("%w: %w", entity.ErrUpstream, err)
	default:
		p.applyFresh(payload)
	}
	s, seq := p.snapshot()
	p.mu.Unlock()

	if outErr == nil {
		p.archive(ctx, payload)
	}
	p.persist(ctx, seq, s)
	return s, outErr
}

// Dispose marks the page as unmounted; pending results are discarded
func (p *Policy) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposed = true
}

// Disposed reports whether Dispose has been called
func (p *Policy) Disposed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposed
}

// applyCache must be called with mu held
func (p *Policy) applyCache(payload *entity.Payload) {
	p.setCounters(payload.APICallsUsed, payload.APICallsRemaining)
	p.state.Error = ""
	p.state.Message = ""

	if payload.HasData() {
		p.state.Phase = entity.PhaseShowingCache
		p.state.DataSource = entity.DataSourceCache
		p.state.Data = append([]entity.AccountAnalytics{}, payload.Data...)
	} else {
		p.state.Phase = entity.PhaseShowingEmpty
		p.state.DataSource = entity.DataSourceNone
		p.state.Data = []entity.AccountAnalytics{}
		p.state.Message = entity.MessageNoData
	}

	if p.state.QuotaExceeded {
		p.state.Message = entity.MessageQuotaExceeded
	}
	p.state.UpdatedAt = p.now()
}

// applyFresh must be called with mu held
func (p *Policy) applyFresh(payload *entity.Payload) {
	p.setCounters(payload.APICallsUsed, payload.APICallsRemaining)
	p.state.Phase = entity.PhaseShowingFresh
	p.state.DataSource = entity.DataSourceFresh
	p.state.Data = append([]entity.AccountAnalytics{}, payload.Data...)
	p.state.Error = ""
	p.state.Message = ""
	if !payload.HasData() {
		p.state.Message = entity.MessageNoData
	}

	if p.state.QuotaExceeded {
		p.state.Phase = entity.PhaseQuotaExceeded
		p.state.Message = entity.MessageQuotaExceeded
	}
	p.state.UpdatedAt = p.now()
}

// applyLimitExceeded must be called with mu held
func (p *Policy) applyLimitExceeded(err error) {
	used, remaining := p.state.APICallsUsed, 0
	var qr QuotaReporter
	if errors.As(err, &qr) {
		if u, r, ok := qr.Quota(); ok {
			used, remaining = u, r
		}
	}
	p.state.APICallsUsed = used
	p.state.APICallsRemaining = remaining
	p.state.QuotaExceeded = true
	p.state.RefreshEnabled = false
	p.state.Phase = entity.PhaseQuotaExceeded
	p.state.Message = entity.MessageQuotaExceeded
	p.state.Error = ""
	p.state.UpdatedAt = p.now()
}

// applyFailure must be called with mu held. Counters are left alone since
// the server state is unknown.
func (p *Policy) applyFailure(err error) {
	p.state.Phase = entity.PhaseError
	p.state.Error = err.Error()
	p.state.Message = ""
	p.state.RefreshEnabled = !p.state.QuotaExceeded
	p.state.UpdatedAt = p.now()
}

func (p *Policy) setCounters(used, remaining int) {
	p.state.APICallsUsed = used
	p.state.APICallsRemaining = remaining
	p.state.QuotaExceeded = remaining <= 0
	p.state.RefreshEnabled = !p.state.QuotaExceeded
}

// snapshot must be called with mu held; it numbers the transition for persist
func (p *Policy) snapshot() (entity.State, uint64) {
	p.seq++
	return p.state.Clone(), p.seq
}

func (p *Policy) persist(ctx context.Context, seq uint64, s entity.State) {
	if p.store == nil {
		return
	}

	p.persistMu.Lock()
	defer p.persistMu.Unlock()
	if seq <= p.persistedSeq {
		p.logger.Debug("skipping stale analytics state write", "key", p.key, "seq", seq)
		return
	}
	p.persistedSeq = seq

	b, err := json.Marshal(s)
	if err != nil {
		p.logger.Error("failed to encode analytics state", "key", p.key, "error", err)
		return
	}
	if err := p.store.Set(ctx, p.stateKey, b); err != nil {
		p.logger.Error("failed to persist analytics state", "key", p.key, "error", err)
	}
}

func (p *Policy) archive(ctx context.Context, payload *entity.Payload) {
	if p.archiver == nil || payload == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to encode analytics snapshot", "key", p.key, "error", err)
		return
	}
	if err := p.archiver.ArchiveSnapshot(ctx, p.key, b); err != nil {
		p.logger.Error("failed to archive analytics snapshot", "key", p.key, "error", err)
	}
}

func isLimitExceeded(err error) bool {
	var le LimitError
	return errors.As(err, &le) && le.IsLimitExceeded()
}

// LoadState reads the last persisted state for key from store
func LoadState(ctx context.Context, store StateStore, key string) (*entity.State, error) {
	b, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading analytics state: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var s entity.State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding analytics state: %w", err)
	}
	return &s, nil
}
