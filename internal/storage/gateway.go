// Package storage is a small gateway over a document collection. Backends
// exist for process memory, GORM (postgres, sqlite) and MongoDB.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// IDField is the key under which every document carries its identifier.
const IDField = "id"

// GroupKeyField holds the group key in aggregation results.
const GroupKeyField = "_id"

var (
	ErrNoDocument   = errors.New("storage: no document")
	ErrDuplicateKey = errors.New("storage: duplicate key")
	ErrBadPipeline  = errors.New("storage: invalid pipeline")
)

// Document is a single raw record.
type Document map[string]interface{}

// ID returns the document identifier, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Filter matches documents whose fields equal every given value. A nil or
// empty filter matches all documents.
type Filter map[string]interface{}

// Collection is the set of primitives the repositories rely on.
type Collection interface {
	Find(ctx context.Context, filter Filter) ([]Document, error)
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Insert(ctx context.Context, doc Document) (Document, error)
	Save(ctx context.Context, doc Document) (Document, error)
	Delete(ctx context.Context, id string) (int64, error)
	Aggregate(ctx context.Context, pipeline Pipeline) ([]Document, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Op is an accumulator operation.
type Op string

const (
	OpSum   Op = "sum"
	OpAvg   Op = "avg"
	OpCount Op = "count"
)

// Accumulator computes one value per group and stores it under As.
type Accumulator struct {
	As    string
	Op    Op
	Field string
}

// Sort orders aggregation results by an accumulator alias or GroupKeyField.
// Ties are broken by the group key, ascending.
type Sort struct {
	Field      string
	Descending bool
}

// Pipeline is a single group stage followed by an optional sort. An empty
// GroupBy aggregates the whole collection into one result, which is returned
// with zero values even when the collection is empty.
type Pipeline struct {
	GroupBy      string
	Accumulators []Accumulator
	Sort         *Sort
}

// Sum totals field across the whole collection.
func Sum(as, field string) Pipeline {
	return Pipeline{Accumulators: []Accumulator{{As: as, Op: OpSum, Field: field}}}
}

// Avg averages field across the whole collection.
func Avg(as, field string) Pipeline {
	return Pipeline{Accumulators: []Accumulator{{As: as, Op: OpAvg, Field: field}}}
}

// CountBy counts documents per value of field, largest groups first.
func CountBy(field, as string) Pipeline {
	return Pipeline{
		GroupBy:      field,
		Accumulators: []Accumulator{{As: as, Op: OpCount}},
		Sort:         &Sort{Field: as, Descending: true},
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that every name in the pipeline is a plain identifier so
// backends can splice them into queries.
func (p Pipeline) Validate() error {
	if len(p.Accumulators) == 0 {
		return fmt.Errorf("%w: no accumulators", ErrBadPipeline)
	}
	if p.GroupBy != "" && !identifier.MatchString(p.GroupBy) {
		return fmt.Errorf("%w: group field %q", ErrBadPipeline, p.GroupBy)
	}
	aliases := map[string]bool{GroupKeyField: true}
	for _, acc := range p.Accumulators {
		if !identifier.MatchString(acc.As) || acc.As == GroupKeyField {
			return fmt.Errorf("%w: alias %q", ErrBadPipeline, acc.As)
		}
		switch acc.Op {
		case OpSum, OpAvg:
			if !identifier.MatchString(acc.Field) {
				return fmt.Errorf("%w: field %q", ErrBadPipeline, acc.Field)
			}
		case OpCount:
		default:
			return fmt.Errorf("%w: op %q", ErrBadPipeline, acc.Op)
		}
		aliases[acc.As] = true
	}
	if p.Sort != nil && !aliases[p.Sort.Field] {
		return fmt.Errorf("%w: sort field %q", ErrBadPipeline, p.Sort.Field)
	}
	return nil
}

// zeroResult is the single result of an ungrouped pipeline over no documents.
func zeroResult(p Pipeline) Document {
	doc := Document{GroupKeyField: nil}
	for _, acc := range p.Accumulators {
		switch acc.Op {
		case OpAvg:
			doc[acc.As] = float64(0)
		default:
			doc[acc.As] = int64(0)
		}
	}
	return doc
}
