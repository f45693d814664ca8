package data

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/mchmarny/benchbase/pkg/airtable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source produces the raw rows of a named table.
type Source interface {
	Records(ctx context.Context, table string) iter.Seq2[*airtable.Record, error]
}

// tableSet is one loaded table: the ordered records ([]*T) and an ID index.
type tableSet struct {
	records any
	byID    map[string]any
}

// Cache holds at most one loaded record set per table. It is never
// invalidated; drop it with Reset when the session ends.
type Cache struct {
	mu    sync.Mutex
	slots map[Table]*tableSet
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{slots: make(map[Table]*tableSet)}
}

func (c *Cache) get(t Table) (*tableSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[t]
	return s, ok
}

func (c *Cache) put(t Table, s *tableSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[t] = s
}

// Has reports whether table is cached.
func (c *Cache) Has(t Table) bool {
	_, ok := c.get(t)
	return ok
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Reset drops every cached table.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[Table]*tableSet)
}

// Loader loads typed records from a Source. Memoized loads go through its
// Cache; references are resolved against memoized loads.
type Loader struct {
	src   Source
	cache *Cache
	group singleflight.Group
}

// NewLoader creates a loader over src. A nil cache gets a fresh one.
func NewLoader(src Source, cache *Cache) *Loader {
	if cache == nil {
		cache = NewCache()
	}
	return &Loader{src: src, cache: cache}
}

// Cache returns the loader's cache.
func (l *Loader) Cache() *Cache {
	return l.cache
}

var fetchers = map[Table]func(context.Context, *Loader) (*tableSet, error){
	TableOrganizations: fetch[Organization],
	TableModels:        fetch[MLModel],
	TableTasks:         fetch[Task],
	TableRuns:          fetch[BenchmarkRun],
	TableScores:        fetch[Score],
}

// fetch reads and decodes every row of T's table.
func fetch[T Entity](ctx context.Context, l *Loader) (*tableSet, error) {
	if l == nil || l.src == nil {
		return nil, errors.New("loader has no source")
	}

	table := tableOf[T]()
	list := make([]*T, 0)
	byID := make(map[string]any)

	for r, err := range l.src.Records(ctx, string(table)) {
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", table, err)
		}
		v, err := Decode[T](r)
		if err != nil {
			return nil, err
		}
		if _, dup := byID[r.ID]; dup {
			return nil, &SchemaError{Table: table, RecordID: r.ID, Reason: "duplicate record id"}
		}
		byID[r.ID] = v
		list = append(list, v)
	}

	slog.Debug("loaded table", "table", table, "records", len(list))
	return &tableSet{records: list, byID: byID}, nil
}

// memoized returns the cached set for table, loading it once on a miss.
// Concurrent misses for the same table share one fetch. The shared fetch
// is detached from the caller's cancellation so one caller giving up does
// not fail the others; each caller still returns early on its own ctx.
func (l *Loader) memoized(ctx context.Context, table Table) (*tableSet, error) {
	if s, ok := l.cache.get(table); ok {
		return s, nil
	}

	fn, ok := fetchers[table]
	if !ok {
		return nil, fmt.Errorf("unknown table: %s", table)
	}

	fctx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(string(table), func() (any, error) {
		if s, ok := l.cache.get(table); ok {
			return s, nil
		}
		s, err := fn(fctx, l)
		if err != nil {
			return nil, err
		}
		l.cache.put(table, s)
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*tableSet), nil
	}
}

func (l *Loader) resolve(ctx context.Context, table Table, id string) (any, error) {
	if l == nil {
		return nil, ErrUnresolved
	}
	s, err := l.memoized(ctx, table)
	if err != nil {
		return nil, err
	}
	v, ok := s.byID[id]
	if !ok {
		return nil, &DanglingReferenceError{Table: table, ID: id}
	}
	return v, nil
}

// LoadAll returns every record of T's table. With memoize set, the first
// call fetches and caches the set and later calls return the same records.
// Without it, every call fetches fresh records and leaves the cache alone.
func LoadAll[T Entity](ctx context.Context, l *Loader, memoize bool) ([]*T, error) {
	table := tableOf[T]()

	var (
		s   *tableSet
		err error
	)
	if memoize {
		s, err = l.memoized(ctx, table)
	} else {
		s, err = fetch[T](ctx, l)
	}
	if err != nil {
		return nil, err
	}
	return s.records.([]*T), nil
}

// Lookup returns the record of T's table with the given ID from the
// memoized set.
func Lookup[T Entity](ctx context.Context, l *Loader, id string) (*T, error) {
	table := tableOf[T]()
	s, err := l.memoized(ctx, table)
	if err != nil {
		return nil, err
	}
	v, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{Table: table, Key: id}
	}
	return v.(*T), nil
}

// Link resolves the references of each record, following them through to
// the records they point at.
func Link[T Entity](ctx context.Context, l *Loader, records []*T) error {
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("linking %s: nil record at index %d", tableOf[T](), i)
		}
		if err := any(r).(linker).link(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// LoadLinked is LoadAll followed by Link.
func LoadLinked[T Entity](ctx context.Context, l *Loader, memoize bool) ([]*T, error) {
	list, err := LoadAll[T](ctx, l, memoize)
	if err != nil {
		return nil, err
	}
	if err := Link(ctx, l, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Preload loads the given tables (all when empty) into the cache
// concurrently.
func (l *Loader) Preload(ctx context.Context, tables ...Table) error {
	if len(tables) == 0 {
		tables = Tables
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tables {
		g.Go(func() error {
			_, err := l.memoized(gctx, t)
			return err
		})
	}
	return g.Wait()
}
