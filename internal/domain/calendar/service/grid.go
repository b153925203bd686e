package service

import (
	"time"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
)

// Builder produces calendar grids and buckets posts into them.
// All date math happens on civil midnights in the builder's location.
type Builder struct {
	firstDay time.Weekday
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Builder
type Option func(*Builder)

// WithFirstDayOfWeek sets the weekday rows start on (Sunday by default)
func WithFirstDayOfWeek(d time.Weekday) Option {
	return func(b *Builder) {
		b.firstDay = d
	}
}

// WithLocation sets the time zone civil dates are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// WithClock overrides the clock used to flag today's cell
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder creates a new grid builder
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		firstDay: time.Sunday,
		loc:      time.UTC,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Location returns the time zone the builder evaluates dates in
func (b *Builder) Location() *time.Location {
	return b.loc
}

// Today returns today's canonical date key
func (b *Builder) Today() string {
	return b.now().In(b.loc).Format(entity.DateLayout)
}

func (b *Builder) civil(t time.Time) time.Time {
	y, m, d := t.In(b.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, b.loc)
}

// StartOfWeek returns the first day of the week containing t
func (b *Builder) StartOfWeek(t time.Time) time.Time {
	d := b.civil(t)
	offset := (int(d.Weekday()) - int(b.firstDay) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// EndOfWeek returns the last day of the week containing t
func (b *Builder) EndOfWeek(t time.Time) time.Time {
	return b.StartOfWeek(t).AddDate(0, 0, 6)
}

// Range returns the inclusive first and last date a grid of the given view covers
func (b *Builder) Range(view entity.ViewMode, ref time.Time) (time.Time, time.Time) {
	switch view {
	case entity.ViewWeek:
		return b.StartOfWeek(ref), b.EndOfWeek(ref)
	case entity.ViewDay:
		d := b.civil(ref)
		return d, d
	default:
		d := b.civil(ref)
		startOfMonth := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, b.loc)
		endOfMonth := startOfMonth.AddDate(0, 1, -1)
		return b.StartOfWeek(startOfMonth), b.EndOfWeek(endOfMonth)
	}
}

// Build dispatches to the grid builder of the given view
func (b *Builder) Build(view entity.ViewMode, ref time.Time) []entity.Cell {
	switch view {
	case entity.ViewWeek:
		return b.BuildWeekGrid(ref)
	case entity.ViewDay:
		return []entity.Cell{b.BuildDayGrid(ref)}
	default:
		return b.BuildMonthGrid(ref)
	}
}

// BuildMonthGrid returns every day of every week the reference month touches.
// The number of rows follows from the month itself and is never assumed.
func (b *Builder) BuildMonthGrid(ref time.Time) []entity.Cell {
	start, end := b.Range(entity.ViewMonth, ref)
	year, month, _ := b.civil(ref).Date()
	today := b.Today()

	var cells []entity.Cell
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cells = append(cells, b.cell(d, d.Year() == year && d.Month() == month, today))
	}

	return cells
}

// BuildWeekGrid returns the 7 days of the week containing ref
func (b *Builder) BuildWeekGrid(ref time.Time) []entity.Cell {
	start := b.StartOfWeek(ref)
	today := b.Today()

	cells := make([]entity.Cell, 7)
	for i := range cells {
		cells[i] = b.cell(start.AddDate(0, 0, i), true, today)
	}

	return cells
}

// BuildDayGrid returns the single cell for ref
func (b *Builder) BuildDayGrid(ref time.Time) entity.Cell {
	return b.cell(b.civil(ref), true, b.Today())
}

func (b *Builder) cell(d time.Time, current bool, today string) entity.Cell {
	key := d.Format(entity.DateLayout)
	return entity.Cell{
		Date:            d,
		Key:             key,
		IsCurrentPeriod: current,
		IsToday:         key == today,
		Posts:           []entity.Post{},
	}
}

// AssignPosts places each post into the cell matching its effective date.
// Posts outside the grid are skipped; posts with malformed dates are returned as dropped.
// The input cells are not modified.
func (b *Builder) AssignPosts(cells []entity.Cell, posts []entity.Post) ([]entity.Cell, []entity.DroppedPost) {
	out := make([]entity.Cell, len(cells))
	index := make(map[string]int, len(cells))
	for i, c := range cells {
		c.Posts = append([]entity.Post{}, c.Posts...)
		out[i] = c
		index[c.Key] = i
	}

	var dropped []entity.DroppedPost
	for _, p := range posts {
		key, err := p.EffectiveDate(b.loc)
		if err != nil {
			dropped = append(dropped, entity.DroppedPost{ID: p.ID, Reason: err.Error()})
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Posts = append(out[i].Posts, p)
		}
	}

	return out, dropped
}
