package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCollection is a Collection backed by a single SQL table. The *gorm.DB
// should be opened with TranslateError so unique violations are recognised.
type GORMCollection struct {
	db    *gorm.DB
	table string
}

// NewGORMCollection creates a collection over table.
func NewGORMCollection(db *gorm.DB, table string) *GORMCollection {
	return &GORMCollection{
		db:    db,
		table: table,
	}
}

func (c *GORMCollection) query(ctx context.Context, filter Filter) *gorm.DB {
	q := c.db.WithContext(ctx).Table(c.table)
	if len(filter) > 0 {
		q = q.Where(map[string]interface{}(filter))
	}
	return q
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// Find returns all rows matching filter.
func (c *GORMCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	var rows []map[string]interface{}
	if err := c.query(ctx, filter).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find in %s: %w", c.table, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document(row))
	}
	return docs, nil
}

// FindOne returns the first row matching filter.
func (c *GORMCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	var rows []map[string]interface{}
	if err := c.query(ctx, filter).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find one in %s: %w", c.table, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoDocument
	}
	return Document(rows[0]), nil
}

// Insert creates a row, assigning a UUID when doc has no id.
func (c *GORMCollection) Insert(ctx context.Context, doc Document) (Document, error) {
	row := maps.Clone(doc)
	if row.ID() == "" {
		row[IDField] = uuid.New().String()
	}
	if err := c.db.WithContext(ctx).Table(c.table).Create(map[string]interface{}(row)).Error; err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", c.table, translate(err))
	}
	return row, nil
}

// Save overwrites every column of the row with doc's id.
func (c *GORMCollection) Save(ctx context.Context, doc Document) (Document, error) {
	id := doc.ID()
	values := maps.Clone(doc)
	delete(values, IDField)

	res := c.query(ctx, Filter{IDField: id}).Updates(map[string]interface{}(values))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to save %s in %s: %w", id, c.table, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoDocument
	}
	return maps.Clone(doc), nil
}

// Delete removes the row with the given id.
func (c *GORMCollection) Delete(ctx context.Context, id string) (int64, error) {
	res := c.db.WithContext(ctx).Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: c.table}, id)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete %s from %s: %w", id, c.table, res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of rows matching filter.
func (c *GORMCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	var n int64
	if err := c.query(ctx, filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.table, err)
	}
	return n, nil
}

// selectList renders the pipeline as SQL select expressions. Names have been
// checked by Pipeline.Validate.
func selectList(p Pipeline) string {
	var cols []string
	if p.GroupBy != "" {
		cols = append(cols, p.GroupBy+" AS "+GroupKeyField)
	}
	for _, acc := range p.Accumulators {
		switch acc.Op {
		case OpSum:
			cols = append(cols, fmt.Sprintf("COALESCE(SUM(%s), 0) AS %s", acc.Field, acc.As))
		case OpAvg:
			if p.GroupBy == "" {
				cols = append(cols, fmt.Sprintf("COALESCE(AVG(%s), 0) AS %s", acc.Field, acc.As))
			} else {
				cols = append(cols, fmt.Sprintf("AVG(%s) AS %s", acc.Field, acc.As))
			}
		case OpCount:
			cols = append(cols, "COUNT(*) AS "+acc.As)
		}
	}
	return strings.Join(cols, ", ")
}

func orderBy(p Pipeline) string {
	if p.Sort == nil {
		return ""
	}
	dir := "ASC"
	if p.Sort.Descending {
		dir = "DESC"
	}
	order := p.Sort.Field + " " + dir
	if p.GroupBy != "" && p.Sort.Field != GroupKeyField {
		order += ", " + GroupKeyField + " ASC"
	}
	return order
}

// Aggregate runs the pipeline as a single SELECT ... GROUP BY statement.
func (c *GORMCollection) Aggregate(ctx context.Context, p Pipeline) ([]Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	q := c.query(ctx, nil).Select(selectList(p))
	if p.GroupBy != "" {
		q = q.Group(p.GroupBy)
	}
	if order := orderBy(p); order != "" {
		q = q.Order(order)
	}

	var rows []map[string]interface{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", c.table, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc := Document(row)
		if p.GroupBy == "" {
			doc[GroupKeyField] = nil
		}
		docs = append(docs, doc)
	}
	if p.GroupBy == "" && len(docs) == 0 {
		docs = append(docs, zeroResult(p))
	}
	return docs, nil
}
