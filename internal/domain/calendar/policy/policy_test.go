package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
	"github.com/vadim/neo-dashboard/internal/domain/calendar/service"
)

type fakePostSource struct {
	posts []entity.Post
	err   error
	calls []SearchInput
	token string
}

func (f *fakePostSource) SearchPosts(ctx context.Context, token string, in SearchInput) ([]entity.Post, error) {
	f.calls = append(f.calls, in)
	f.token = token
	return f.posts, f.err
}

func strPtr(s string) *string { return &s }

func newTestPolicy(src PostSource, logs *bytes.Buffer) *Policy {
	builder := service.NewBuilder(service.WithClock(func() time.Time {
		return time.Date(2025, time.November, 15, 9, 0, 0, 0, time.UTC)
	}))
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	return New(service.NewMemo(builder, 16), src, logger)
}

func TestPolicy_BuildCalendar(t *testing.T) {
	src := &fakePostSource{posts: []entity.Post{
		{ID: "1", Status: entity.PostStatusScheduled, ScheduledAt: strPtr("2025-11-15T10:00:00Z")},
		{ID: "2", Status: entity.PostStatusScheduled, ScheduledAt: strPtr("bogus")},
	}}
	var logs bytes.Buffer
	p := newTestPolicy(src, &logs)

	out, err := p.BuildCalendar(context.Background(), BuildCalendarInput{
		Token:      "tok",
		View:       entity.ViewMonth,
		Date:       "2025-11-01",
		Query:      "launch",
		Status:     "scheduled",
		AccountIDs: []string{"7", "9"},
	})
	require.NoError(t, err)

	require.Len(t, src.calls, 1)
	assert.Equal(t, "tok", src.token)
	assert.Equal(t, SearchInput{
		Query:      "launch",
		Status:     "scheduled",
		From:       "2025-10-26",
		To:         "2025-12-06",
		AccountIDs: []string{"7", "9"},
	}, src.calls[0])

	assert.Equal(t, entity.ViewMonth, out.View)
	assert.Equal(t, "2025-11-01", out.Reference)
	assert.Equal(t, entity.DateRange{From: "2025-10-26", To: "2025-12-06"}, out.Range)
	assert.Equal(t, 6, out.Rows)
	assert.Len(t, out.Cells, 42)

	var placed []entity.PostID
	for _, c := range out.Cells {
		for _, post := range c.Posts {
			assert.Equal(t, "2025-11-15", c.Key)
			placed = append(placed, post.ID)
		}
	}
	assert.Equal(t, []entity.PostID{"1"}, placed)

	require.Len(t, out.Dropped, 1)
	assert.Equal(t, entity.PostID("2"), out.Dropped[0].ID)
	assert.Contains(t, logs.String(), "post dropped from calendar")
	assert.Contains(t, logs.String(), `"post_id":"2"`)
}

func TestPolicy_BuildCalendar_NumericDateIsDropped(t *testing.T) {
	var posts []entity.Post
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "status": "scheduled", "scheduled_at": "2025-11-15T10:00:00Z", "created_at": "2025-11-01T00:00:00Z"},
		{"id": 2, "status": "draft", "scheduled_at": null, "created_at": 1730419200}
	]`), &posts))

	var logs bytes.Buffer
	p := newTestPolicy(&fakePostSource{posts: posts}, &logs)

	out, err := p.BuildCalendar(context.Background(), BuildCalendarInput{Token: "tok", Date: "2025-11-01"})
	require.NoError(t, err)

	var placed []entity.PostID
	for _, c := range out.Cells {
		for _, post := range c.Posts {
			placed = append(placed, post.ID)
		}
	}
	assert.Equal(t, []entity.PostID{"1"}, placed)

	require.Len(t, out.Dropped, 1)
	assert.Equal(t, entity.PostID("2"), out.Dropped[0].ID)
	assert.Contains(t, logs.String(), `"post_id":"2"`)
}

func TestPolicy_BuildCalendar_Defaults(t *testing.T) {
	src := &fakePostSource{}
	p := newTestPolicy(src, &bytes.Buffer{})

	out, err := p.BuildCalendar(context.Background(), BuildCalendarInput{})
	require.NoError(t, err)

	assert.Equal(t, entity.ViewMonth, out.View)
	assert.Equal(t, "2025-11-15", out.Reference)
	assert.Empty(t, out.Dropped)

	today := 0
	for _, c := range out.Cells {
		if c.IsToday {
			today++
			assert.Equal(t, "2025-11-15", c.Key)
		}
	}
	assert.Equal(t, 1, today)
}

func TestPolicy_BuildCalendar_WeekAndDayRanges(t *testing.T) {
	src := &fakePostSource{}
	p := newTestPolicy(src, &bytes.Buffer{})

	out, err := p.BuildCalendar(context.Background(), BuildCalendarInput{View: entity.ViewWeek, Date: "2025-11-12"})
	require.NoError(t, err)
	assert.Len(t, out.Cells, 7)
	assert.Equal(t, 1, out.Rows)
	assert.Equal(t, "2025-11-09", src.calls[0].From)
	assert.Equal(t, "2025-11-15", src.calls[0].To)

	out, err = p.BuildCalendar(context.Background(), BuildCalendarInput{View: entity.ViewDay, Date: "2025-11-12"})
	require.NoError(t, err)
	assert.Len(t, out.Cells, 1)
	assert.Equal(t, "2025-11-12", src.calls[1].From)
	assert.Equal(t, "2025-11-12", src.calls[1].To)
}

func TestPolicy_BuildCalendar_Errors(t *testing.T) {
	upstreamErr := errors.New("connection refused")

	tests := []struct {
		name    string
		src     *fakePostSource
		in      BuildCalendarInput
		wantErr error
		fetched bool
	}{
		{name: "invalid view", src: &fakePostSource{}, in: BuildCalendarInput{View: "year"}, wantErr: entity.ErrInvalidViewMode},
		{name: "invalid date", src: &fakePostSource{}, in: BuildCalendarInput{Date: "15/11/2025"}, wantErr: entity.ErrInvalidReferenceDate},
		{name: "impossible date", src: &fakePostSource{}, in: BuildCalendarInput{Date: "2025-02-30"}, wantErr: entity.ErrInvalidReferenceDate},
		{name: "invalid status", src: &fakePostSource{}, in: BuildCalendarInput{Status: "archived"}, wantErr: entity.ErrInvalidPostStatus},
		{name: "upstream failure", src: &fakePostSource{err: upstreamErr}, in: BuildCalendarInput{}, wantErr: upstreamErr, fetched: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPolicy(tt.src, &bytes.Buffer{})

			out, err := p.BuildCalendar(context.Background(), tt.in)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.fetched, len(tt.src.calls) > 0)
		})
	}
}

func TestPolicy_BuildGrid(t *testing.T) {
	src := &fakePostSource{}
	p := newTestPolicy(src, &bytes.Buffer{})

	posts := []entity.Post{
		{ID: "a", ScheduledAt: strPtr("2025-11-15T10:00:00Z")},
		{ID: "b", CreatedAt: "2025-11-15T11:00:00Z"},
	}

	out, err := p.BuildGrid(context.Background(), BuildGridInput{View: entity.ViewDay, Date: "2025-11-15", Posts: posts})
	require.NoError(t, err)
	require.Len(t, out.Cells, 1)
	assert.Equal(t, posts, out.Cells[0].Posts)
	assert.Empty(t, src.calls, "preview never reaches the remote API")

	_, err = p.BuildGrid(context.Background(), BuildGridInput{View: "fortnight"})
	assert.ErrorIs(t, err, entity.ErrInvalidViewMode)
}
