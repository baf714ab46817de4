package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoIDField = "_id"

// MongoCollection is a Collection backed by a MongoDB collection. Document ids
// are stored as string _id values and exposed as IDField.
type MongoCollection struct {
	coll *mongo.Collection
}

// NewMongoCollection wraps coll.
func NewMongoCollection(coll *mongo.Collection) *MongoCollection {
	return &MongoCollection{coll: coll}
}

// EnsureUniqueIndex creates a unique ascending index on field.
func (c *MongoCollection) EnsureUniqueIndex(ctx context.Context, field string) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique index on %s: %w", field, err)
	}
	return nil
}

func toMongo(m map[string]interface{}) bson.M {
	out := bson.M{}
	for k, v := range m {
		if k == IDField {
			k = mongoIDField
		}
		out[k] = v
	}
	return out
}

func fromMongo(m bson.M) Document {
	doc := Document{}
	for k, v := range m {
		if k == mongoIDField {
			k = IDField
		}
		doc[k] = v
	}
	return doc
}

func mongoErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Find returns all documents matching filter.
func (c *MongoCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	cur, err := c.coll.Find(ctx, toMongo(filter))
	if err != nil {
		return nil, mongoErr("find", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, mongoErr("read cursor", err)
	}
	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromMongo(m))
	}
	return docs, nil
}

// FindOne returns the first document matching filter.
func (c *MongoCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	var m bson.M
	err := c.coll.FindOne(ctx, toMongo(filter)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, mongoErr("find one", err)
	}
	return fromMongo(m), nil
}

// Insert stores doc, assigning a UUID when it has no id.
func (c *MongoCollection) Insert(ctx context.Context, doc Document) (Document, error) {
	m := toMongo(doc)
	if doc.ID() == "" {
		m[mongoIDField] = uuid.New().String()
	}
	if _, err := c.coll.InsertOne(ctx, m); err != nil {
		return nil, mongoErr("insert", err)
	}
	return fromMongo(m), nil
}

// Save replaces the document with doc's id.
func (c *MongoCollection) Save(ctx context.Context, doc Document) (Document, error) {
	replacement := toMongo(doc)
	delete(replacement, mongoIDField)

	res, err := c.coll.ReplaceOne(ctx, bson.M{mongoIDField: doc.ID()}, replacement)
	if err != nil {
		return nil, mongoErr("replace", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNoDocument
	}
	return doc, nil
}

// Delete removes the document with the given id.
func (c *MongoCollection) Delete(ctx context.Context, id string) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, bson.M{mongoIDField: id})
	if err != nil {
		return 0, mongoErr("delete", err)
	}
	return res.DeletedCount, nil
}

// Count returns the number of documents matching filter.
func (c *MongoCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toMongo(filter))
	if err != nil {
		return 0, mongoErr("count", err)
	}
	return n, nil
}

// MongoPipeline translates p into $group and $sort stages.
func MongoPipeline(p Pipeline) (mongo.Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var key interface{}
	if p.GroupBy != "" {
		key = "$" + p.GroupBy
	}
	group := bson.D{{Key: mongoIDField, Value: key}}
	for _, acc := range p.Accumulators {
		var expr bson.D
		switch acc.Op {
		case OpSum:
			expr = bson.D{{Key: "$sum", Value: "$" + acc.Field}}
		case OpAvg:
			expr = bson.D{{Key: "$avg", Value: "$" + acc.Field}}
		case OpCount:
			expr = bson.D{{Key: "$sum", Value: 1}}
		}
		group = append(group, bson.E{Key: acc.As, Value: expr})
	}

	pipeline := mongo.Pipeline{{{Key: "$group", Value: group}}}
	if p.Sort != nil {
		dir := 1
		if p.Sort.Descending {
			dir = -1
		}
		order := bson.D{{Key: p.Sort.Field, Value: dir}}
		if p.Sort.Field != GroupKeyField {
			order = append(order, bson.E{Key: GroupKeyField, Value: 1})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: order}})
	}
	return pipeline, nil
}

// Aggregate runs the translated pipeline on the server.
func (c *MongoCollection) Aggregate(ctx context.Context, p Pipeline) ([]Document, error) {
	pipeline, err := MongoPipeline(p)
	if err != nil {
		return nil, err
	}
	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongoErr("aggregate", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, mongoErr("read aggregate cursor", err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		// the group key stays under _id here, unlike stored documents
		docs = append(docs, Document(m))
	}
	if p.GroupBy == "" && len(docs) == 0 {
		docs = append(docs, zeroResult(p))
	}
	return docs, nil
}
