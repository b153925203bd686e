package service

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
)

const defaultMemoSize = 256

// MemoKey identifies a built grid
type MemoKey struct {
	View         entity.ViewMode
	Date         string
	PostsVersion uint64
}

func (k MemoKey) String() string {
	return fmt.Sprintf("%s|%s|%x", k.View, k.Date, k.PostsVersion)
}

type memoEntry struct {
	cells   []entity.Cell
	dropped []entity.DroppedPost
}

// Memo caches bucketed grids so that unchanged input is not rebuilt on every request
type Memo struct {
	builder *Builder
	size    int

	mu      sync.Mutex
	entries map[MemoKey]memoEntry
	order   []MemoKey

	group singleflight.Group
}

// NewMemo creates a memo holding at most size grids
func NewMemo(builder *Builder, size int) *Memo {
	if size <= 0 {
		size = defaultMemoSize
	}
	return &Memo{
		builder: builder,
		size:    size,
		entries: make(map[MemoKey]memoEntry),
	}
}

// Builder returns the underlying grid builder
func (m *Memo) Builder() *Builder {
	return m.builder
}

// Len returns the number of cached grids
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Grid returns the bucketed grid for view/ref/posts, building it at most once per key
func (m *Memo) Grid(view entity.ViewMode, ref time.Time, posts []entity.Post) ([]entity.Cell, []entity.DroppedPost) {
	key := MemoKey{
		View:         view,
		Date:         ref.In(m.builder.Location()).Format(entity.DateLayout),
		PostsVersion: PostsVersion(posts),
	}

	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()

	if !ok {
		v, _, _ := m.group.Do(key.String(), func() (interface{}, error) {
			cells, dropped := m.builder.AssignPosts(m.builder.Build(view, ref), posts)
			built := memoEntry{cells: cells, dropped: dropped}
			m.store(key, built)
			return built, nil
		})
		e = v.(memoEntry)
	}

	return m.snapshot(e)
}

func (m *Memo) store(key MemoKey, e memoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		return
	}
	for len(m.order) >= m.size {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[key] = e
	m.order = append(m.order, key)
}

// snapshot copies a cached entry and re-evaluates today's flag against the clock
func (m *Memo) snapshot(e memoEntry) ([]entity.Cell, []entity.DroppedPost) {
	today := m.builder.Today()

	cells := make([]entity.Cell, len(e.cells))
	for i, c := range e.cells {
		c.Posts = append([]entity.Post{}, c.Posts...)
		c.IsToday = c.Key == today
		cells[i] = c
	}

	var dropped []entity.DroppedPost
	if len(e.dropped) > 0 {
		dropped = append([]entity.DroppedPost{}, e.dropped...)
	}

	return cells, dropped
}

// PostsVersion fingerprints a post list; any change to a post or their order changes it
func PostsVersion(posts []entity.Post) uint64 {
	h := fnv.New64a()
	for _, p := range posts {
		scheduled := ""
		if p.ScheduledAt != nil {
			scheduled = *p.ScheduledAt
		}
		fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1e",
			p.ID, p.Status, scheduled, p.CreatedAt, p.BrandName, p.PlatformType, p.Content)
	}
	return h.Sum64()
}
