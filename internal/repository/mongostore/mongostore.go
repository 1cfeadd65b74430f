// FilePath: internal/repository/mongostore/mongostore.go
package mongostore

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names follow the original mongoose models
const (
	rawCollection            = "rawdatas"
	calibratedCollection     = "calibrateddatas"
	recommendationCollection = "recommendations"
	manualCollection         = "manualdatas"
)

type docPtr[T any] interface {
	*T
	models.Document
}

var newestFirst = bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}

// Collection stores one entity type in a MongoDB collection
type Collection[T any, PT docPtr[T]] struct {
	coll   *mongo.Collection
	prefix string
	entity string
	now    func() time.Time
}

func newCollection[T any, PT docPtr[T]](db *mongo.Database, name, prefix, entity string) *Collection[T, PT] {
	return &Collection[T, PT]{
		coll:   db.Collection(name),
		prefix: prefix,
		entity: entity,
		now:    time.Now,
	}
}

func (c *Collection[T, PT]) Insert(ctx context.Context, doc *T) error {
	repository.Stamp(PT(doc).Meta(), c.prefix, c.now())
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return errors.NewDatabaseError("failed to store "+c.entity, err)
	}
	return nil
}

func (c *Collection[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	doc := new(T)
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(doc)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFoundError(c.entity+" not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get "+c.entity, err)
	}
	return c.normalize(doc), nil
}

func (c *Collection[T, PT]) Latest(ctx context.Context) (*T, error) {
	return c.first(ctx, bson.M{})
}

func (c *Collection[T, PT]) Recent(ctx context.Context, limit int) ([]*T, error) {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := c.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list "+c.entity, err)
	}
	defer cur.Close(ctx)

	docs := []*T{}
	for cur.Next(ctx) {
		doc := new(T)
		if err := cur.Decode(doc); err != nil {
			return nil, errors.NewDatabaseError("failed to decode "+c.entity, err)
		}
		docs = append(docs, c.normalize(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, errors.NewDatabaseError("failed to list "+c.entity, err)
	}
	return docs, nil
}

func (c *Collection[T, PT]) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.NewDatabaseError("failed to delete "+c.entity, err)
	}
	if res.DeletedCount == 0 {
		return errors.NewNotFoundError(c.entity+" not found", nil)
	}
	return nil
}

func (c *Collection[T, PT]) DeleteAll(ctx context.Context) (int64, error) {
	return c.deleteMany(ctx, bson.M{})
}

func (c *Collection[T, PT]) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return c.deleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
}

func (c *Collection[T, PT]) Count(ctx context.Context) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.NewDatabaseError("failed to count "+c.entity, err)
	}
	return n, nil
}

func (c *Collection[T, PT]) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete "+c.entity, err)
	}
	return res.DeletedCount, nil
}

func (c *Collection[T, PT]) first(ctx context.Context, filter bson.M) (*T, error) {
	doc := new(T)
	err := c.coll.FindOne(ctx, filter, options.FindOne().SetSort(newestFirst)).Decode(doc)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFoundError("no "+c.entity+" found", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest "+c.entity, err)
	}
	return c.normalize(doc), nil
}

// normalize restores UTC on decoded timestamps
func (c *Collection[T, PT]) normalize(doc *T) *T {
	meta := PT(doc).Meta()
	meta.Timestamp = models.StoreTime(meta.Timestamp)
	return doc
}

// ManualCollection adds the extracted-values lookup to the manual collection
type ManualCollection struct {
	*Collection[models.ManualData, *models.ManualData]
}

func (c *ManualCollection) LatestWithExtracted(ctx context.Context) (*models.ManualData, error) {
	return c.first(ctx, bson.M{"extractedData": bson.M{"$exists": true, "$ne": nil}})
}

// Store implements repository.Store on MongoDB
type Store struct {
	db              *database.MongoDB
	raw             *Collection[models.RawReading, *models.RawReading]
	calibrated      *Collection[models.CalibratedReading, *models.CalibratedReading]
	recommendations *Collection[models.Recommendation, *models.Recommendation]
	manual          *ManualCollection
}

// New builds the store and makes sure the timestamp indexes exist
func New(ctx context.Context, db *database.MongoDB) (*Store, error) {
	mdb := db.Database()
	for _, name := range []string{rawCollection, calibratedCollection, recommendationCollection, manualCollection} {
		_, err := mdb.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: newestFirst})
		if err != nil {
			return nil, errors.NewDatabaseError("failed to create index on "+name, err)
		}
	}
	nuts.L.Infof("[MongoStore] Indexes ready on %s", mdb.Name())

	return &Store{
		db:              db,
		raw:             newCollection[models.RawReading](mdb, rawCollection, repository.PrefixRaw, "raw data"),
		calibrated:      newCollection[models.CalibratedReading](mdb, calibratedCollection, repository.PrefixCalibrated, "calibrated data"),
		recommendations: newCollection[models.Recommendation](mdb, recommendationCollection, repository.PrefixRecommendation, "recommendation"),
		manual:          &ManualCollection{Collection: newCollection[models.ManualData](mdb, manualCollection, repository.PrefixManual, "manual data")},
	}, nil
}

func (s *Store) Raw() repository.RawReadingRepository { return s.raw }

func (s *Store) Calibrated() repository.CalibratedReadingRepository { return s.calibrated }

func (s *Store) Recommendations() repository.RecommendationRepository { return s.recommendations }

func (s *Store) Manual() repository.ManualDataRepository { return s.manual }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return errors.NewDatabaseError("failed to ping database", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ repository.Store = (*Store)(nil)
