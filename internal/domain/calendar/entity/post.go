package entity

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// PostStatus represents the lifecycle status of a post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// IsValid reports whether s is one of the known statuses
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished, PostStatusFailed:
		return true
	default:
		return false
	}
}

// PostID accepts both string and numeric ids from the remote API
type PostID string

func (id *PostID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PostID(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = PostID(n.String())
	return nil
}

// Post is a scheduled or published social post as returned by the remote API.
// Timestamps stay raw so that one malformed value only drops its own post.
type Post struct {
	ID           PostID     `json:"id"`
	Status       PostStatus `json:"status"`
	ScheduledAt  *string    `json:"scheduled_at,omitempty"`
	CreatedAt    string     `json:"created_at"`
	BrandName    string     `json:"brand_name,omitempty"`
	PlatformType string     `json:"platform_type,omitempty"`
	Content      string     `json:"content,omitempty"`
}

// UnmarshalJSON keeps a timestamp that is not a JSON string as its raw text, so a
// numeric or object date fails EffectiveDate for that post instead of the whole decode.
func (p *Post) UnmarshalJSON(b []byte) error {
	type plain Post
	var raw struct {
		plain
		ScheduledAt json.RawMessage `json:"scheduled_at"`
		CreatedAt   json.RawMessage `json:"created_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = Post(raw.plain)
	p.ScheduledAt = nil
	if ts, ok := rawTimestamp(raw.ScheduledAt); ok {
		p.ScheduledAt = &ts
	}
	p.CreatedAt, _ = rawTimestamp(raw.CreatedAt)
	return nil
}

func rawTimestamp(b json.RawMessage) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return s, true
		}
	}
	return string(b), true
}

// DateLayout is the canonical civil date representation used for cell matching
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ParseTimestamp parses the timestamp formats the remote API is known to emit.
// Values without an offset are interpreted in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EffectiveTime returns scheduled_at when present and valid, otherwise created_at
func (p *Post) EffectiveTime(loc *time.Location) (time.Time, error) {
	if p.ScheduledAt != nil {
		if t, ok := ParseTimestamp(*p.ScheduledAt, loc); ok {
			return t.In(loc), nil
		}
	}
	if t, ok := ParseTimestamp(p.CreatedAt, loc); ok {
		return t.In(loc), nil
	}
	return time.Time{}, ErrInvalidPostDate
}

// EffectiveDate returns the canonical YYYY-MM-DD key of the post's effective time in loc
func (p *Post) EffectiveDate(loc *time.Location) (string, error) {
	t, err := p.EffectiveTime(loc)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}
