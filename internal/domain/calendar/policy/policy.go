package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
	"github.com/vadim/neo-dashboard/internal/domain/calendar/service"
)

// PostSource defines the interface for searching posts in the remote API
// This interface is defined here (consumer) not in the upstream package (provider)
type PostSource interface {
	SearchPosts(ctx context.Context, token string, in SearchInput) ([]entity.Post, error)
}

// SearchInput is the pass-through filter for post search
type SearchInput struct {
	Query      string
	Status     string
	From       string
	To         string
	AccountIDs []string
}

// Policy orchestrates calendar use-cases
type Policy struct {
	memo   *service.Memo
	posts  PostSource
	logger *slog.Logger
}

// New creates a new calendar policy
func New(memo *service.Memo, posts PostSource, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		memo:   memo,
		posts:  posts,
		logger: logger,
	}
}

// CalendarOutput is a built grid with its posts attached
type CalendarOutput struct {
	View      entity.ViewMode      `json:"view"`
	Reference string               `json:"reference_date"`
	Range     entity.DateRange     `json:"range"`
	Rows      int                  `json:"rows"`
	Cells     []entity.Cell        `json:"cells"`
	Dropped   []entity.DroppedPost `json:"dropped,omitempty"`
}

// BuildCalendarInput represents input for building a calendar from remote posts
type BuildCalendarInput struct {
	Token      string
	View       entity.ViewMode
	Date       string // YYYY-MM-DD, today when empty
	Query      string
	Status     string
	AccountIDs []string
}

// BuildCalendar fetches the posts covering the grid range and buckets them
func (p *Policy) BuildCalendar(ctx context.Context, in BuildCalendarInput) (*CalendarOutput, error) {
	ref, err := p.referenceDate(in.Date)
	if err != nil {
		return nil, err
	}
	if in.View == "" {
		in.View = entity.ViewMonth
	}
	if _, err := entity.ParseViewMode(string(in.View)); err != nil {
		return nil, err
	}
	if in.Status != "" && !entity.PostStatus(in.Status).IsValid() {
		return nil, entity.ErrInvalidPostStatus
	}

	from, to := p.memo.Builder().Range(in.View, ref)

	posts, err := p.posts.SearchPosts(ctx, in.Token, SearchInput{
		Query:      in.Query,
		Status:     in.Status,
		From:       from.Format(entity.DateLayout),
		To:         to.Format(entity.DateLayout),
		AccountIDs: in.AccountIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("searching posts: %w", err)
	}

	return p.build(in.View, ref, posts), nil
}

// BuildGridInput represents input for bucketing caller-supplied posts
type BuildGridInput struct {
	View  entity.ViewMode
	Date  string
	Posts []entity.Post
}

// BuildGrid buckets the given posts without contacting the remote API
func (p *Policy) BuildGrid(ctx context.Context, in BuildGridInput) (*CalendarOutput, error) {
	ref, err := p.referenceDate(in.Date)
	if err != nil {
		return nil, err
	}
	if in.View == "" {
		in.View = entity.ViewMonth
	}
	if _, err := entity.ParseViewMode(string(in.View)); err != nil {
		return nil, err
	}

	return p.build(in.View, ref, in.Posts), nil
}

func (p *Policy) build(view entity.ViewMode, ref time.Time, posts []entity.Post) *CalendarOutput {
	builder := p.memo.Builder()
	from, to := builder.Range(view, ref)

	cells, dropped := p.memo.Grid(view, ref, posts)
	for _, d := range dropped {
		p.logger.Warn("post dropped from calendar",
			"post_id", d.ID,
			"reason", d.Reason,
			"view", view,
			"reference_date", ref.Format(entity.DateLayout),
		)
	}

	return &CalendarOutput{
		View:      view,
		Reference: ref.Format(entity.DateLayout),
		Range: entity.DateRange{
			From: from.Format(entity.DateLayout),
			To:   to.Format(entity.DateLayout),
		},
		Rows:    (len(cells) + 6) / 7,
		Cells:   cells,
		Dropped: dropped,
	}
}

func (p *Policy) referenceDate(raw string) (time.Time, error) {
	loc := p.memo.Builder().Location()
	if raw == "" {
		today, _ := time.ParseInLocation(entity.DateLayout, p.memo.Builder().Today(), loc)
		return today, nil
	}
	t, err := time.ParseInLocation(entity.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, entity.ErrInvalidReferenceDate
	}
	return t, nil
}
