package storage

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// MemoryCollection is an in-memory implementation of Collection. Each
// instance owns its data; nothing is shared between instances.
type MemoryCollection struct {
	mu     sync.RWMutex
	docs   map[string]Document
	order  []string
	unique []string
}

// NewMemoryCollection creates an empty collection. Inserts and saves that
// would repeat a value of any unique field fail with ErrDuplicateKey.
func NewMemoryCollection(unique ...string) *MemoryCollection {
	return &MemoryCollection{
		docs:   make(map[string]Document),
		unique: unique,
	}
}

func matches(doc Document, filter Filter) bool {
	for field, want := range filter {
		if !reflect.DeepEqual(doc[field], want) {
			return false
		}
	}
	return true
}

// Find returns copies of the matching documents in insertion order.
func (c *MemoryCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		if doc := c.docs[id]; matches(doc, filter) {
			docs = append(docs, maps.Clone(doc))
		}
	}
	return docs, nil
}

// FindOne returns the first matching document.
func (c *MemoryCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocument
	}
	return docs[0], nil
}

// conflicts reports whether doc repeats a unique value held by another
// document. Callers hold the lock.
func (c *MemoryCollection) conflicts(doc Document) error {
	for _, field := range c.unique {
		value, ok := doc[field]
		if !ok {
			continue
		}
		for id, other := range c.docs {
			if id != doc.ID() && reflect.DeepEqual(other[field], value) {
				return fmt.Errorf("%w: %s=%v", ErrDuplicateKey, field, value)
			}
		}
	}
	return nil
}

// Insert stores a copy of doc, assigning a UUID when it has no id.
func (c *MemoryCollection) Insert(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := maps.Clone(doc)
	if stored.ID() == "" {
		stored[IDField] = uuid.New().String()
	}
	if _, exists := c.docs[stored.ID()]; exists {
		return nil, fmt.Errorf("%w: id=%s", ErrDuplicateKey, stored.ID())
	}
	if err := c.conflicts(stored); err != nil {
		return nil, err
	}
	c.docs[stored.ID()] = stored
	c.order = append(c.order, stored.ID())
	return maps.Clone(stored), nil
}

// Save replaces the stored document with the same id.
func (c *MemoryCollection) Save(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[doc.ID()]; !ok {
		return nil, ErrNoDocument
	}
	if err := c.conflicts(doc); err != nil {
		return nil, err
	}
	c.docs[doc.ID()] = maps.Clone(doc)
	return maps.Clone(doc), nil
}

// Delete removes the document with the given id.
func (c *MemoryCollection) Delete(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return 0, nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

// Count returns the number of matching documents.
func (c *MemoryCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

type accState struct {
	sumInt   int64
	sumFloat float64
	integral bool
	n        int64
}

func (s *accState) add(v interface{}) error {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		i, err := cast.ToInt64E(n)
		if err != nil {
			return err
		}
		s.sumInt += i
		s.sumFloat += float64(i)
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		s.integral = false
		s.sumFloat += f
	}
	s.n++
	return nil
}

type group struct {
	key    interface{}
	states []*accState
	count  int64
}

// Aggregate evaluates the pipeline over a snapshot of the collection.
func (c *MemoryCollection) Aggregate(ctx context.Context, p Pipeline) ([]Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	docs, err := c.Find(ctx, nil)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*group)
	var keys []string
	for _, doc := range docs {
		var key interface{}
		if p.GroupBy != "" {
			key = doc[p.GroupBy]
		}
		gk := fmt.Sprint(key)
		g, ok := groups[gk]
		if !ok {
			g = &group{key: key, states: make([]*accState, len(p.Accumulators))}
			for i := range g.states {
				g.states[i] = &accState{integral: true}
			}
			groups[gk] = g
			keys = append(keys, gk)
		}
		g.count++
		for i, acc := range p.Accumulators {
			if acc.Op == OpCount {
				continue
			}
			v, present := doc[acc.Field]
			if !present || v == nil {
				continue
			}
			if err := g.states[i].add(v); err != nil {
				return nil, fmt.Errorf("aggregate %s(%s): %w", acc.Op, acc.Field, err)
			}
		}
	}

	if p.GroupBy == "" && len(groups) == 0 {
		return []Document{zeroResult(p)}, nil
	}

	results := make([]Document, 0, len(keys))
	for _, gk := range keys {
		g := groups[gk]
		doc := Document{GroupKeyField: g.key}
		for i, acc := range p.Accumulators {
			st := g.states[i]
			switch acc.Op {
			case OpCount:
				doc[acc.As] = g.count
			case OpSum:
				if st.integral {
					doc[acc.As] = st.sumInt
				} else {
					doc[acc.As] = st.sumFloat
				}
			case OpAvg:
				if st.n == 0 {
					doc[acc.As] = nil
				} else {
					doc[acc.As] = st.sumFloat / float64(st.n)
				}
			}
		}
		results = append(results, doc)
	}

	if p.Sort != nil {
		sortDocuments(results, *p.Sort)
	}
	return results, nil
}

func sortDocuments(docs []Document, s Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i][s.Field], docs[j][s.Field]
		if s.Field != GroupKeyField {
			fa, fb := cast.ToFloat64(a), cast.ToFloat64(b)
			if fa != fb {
				if s.Descending {
					return fa > fb
				}
				return fa < fb
			}
			return fmt.Sprint(docs[i][GroupKeyField]) < fmt.Sprint(docs[j][GroupKeyField])
		}
		if s.Descending {
			return fmt.Sprint(a) > fmt.Sprint(b)
		}
		return fmt.Sprint(a) < fmt.Sprint(b)
	})
}
