package entity

import (
	"encoding/json"
	"time"
)

// Phase is the step of the refresh lifecycle a page is in
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseShowingCache  Phase = "showing_cache"
	PhaseShowingEmpty  Phase = "showing_empty"
	PhaseRefreshing    Phase = "refreshing"
	PhaseShowingFresh  Phase = "showing_fresh"
	PhaseQuotaExceeded Phase = "quota_exceeded"
	PhaseError         Phase = "error"
)

// DataSource tells where the displayed data came from
type DataSource string

const (
	DataSourceNone  DataSource = "none"
	DataSourceCache DataSource = "cache"
	DataSourceFresh DataSource = "fresh"
)

// User-facing messages
const (
	MessageNoData        = "No analytics data yet. Refresh to fetch."
	MessageQuotaExceeded = "Refresh limit reached. Data will be refreshable again after the quota resets."
)

// AccountAnalytics is one account's analytics record. Metrics are passed to the
// page untouched since charts are rendered client side.
type AccountAnalytics struct {
	AccountID   string          `json:"account_id,omitempty"`
	AccountName string          `json:"account_name,omitempty"`
	Platform    string          `json:"platform,omitempty"`
	Metrics     json.RawMessage `json:"metrics,omitempty"`
	FetchedAt   *time.Time      `json:"fetched_at,omitempty"`
}

// Payload is the validated body of both analytics endpoints
type Payload struct {
	Success           bool               `json:"success"`
	Data              []AccountAnalytics `json:"data"`
	APICallsUsed      int                `json:"api_calls_used"`
	APICallsRemaining int                `json:"api_calls_remaining"`
}

// HasData reports whether the payload carries at least one record
func (p *Payload) HasData() bool {
	return len(p.Data) > 0
}

// State is the analytics view state of a single mounted page
type State struct {
	Phase             Phase              `json:"phase"`
	DataSource        DataSource         `json:"data_source"`
	APICallsUsed      int                `json:"api_calls_used"`
	APICallsRemaining int                `json:"api_calls_remaining"`
	QuotaExceeded     bool               `json:"quota_exceeded"`
	RefreshEnabled    bool               `json:"refresh_enabled"`
	Message           string             `json:"message,omitempty"`
	Error             string             `json:"error,omitempty"`
	Data              []AccountAnalytics `json:"data"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// NewState returns the state of a page that has not been mounted yet
func NewState() State {
	return State{
		Phase:      PhaseUninitialized,
		DataSource: DataSourceNone,
		Data:       []AccountAnalytics{},
	}
}

// Clone returns a copy that shares no slices with s
func (s State) Clone() State {
	s.Data = append([]AccountAnalytics{}, s.Data...)
	return s
}
