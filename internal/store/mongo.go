package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sells-group/recipe-cli/internal/model"
)

const (
	collRecipeCache = "recipe_cache"
	collQuotas      = "quotas"
	collShares      = "shares"
)

// MongoStore implements Store on MongoDB. Quota increments use a single
// findAndModify with a pipeline update so the period reset is atomic.
type MongoStore struct {
	db     *mongo.Database
	cache  *mongo.Collection
	quotas *mongo.Collection
	shares *mongo.Collection
}

type mongoCacheDoc struct {
	URL       string       `bson:"_id"`
	Recipe    model.Recipe `bson:"recipe"`
	StoredAt  time.Time    `bson:"stored_at"`
	ExpiresAt time.Time    `bson:"expires_at"`
}

type mongoQuotaDoc struct {
	Identity    string    `bson:"_id"`
	Count       int       `bson:"count"`
	PeriodStart time.Time `bson:"period_start"`
}

type mongoShareDoc struct {
	ID        string       `bson:"_id"`
	Recipe    model.Recipe `bson:"recipe"`
	SourceURL string       `bson:"source_url"`
	CreatedAt time.Time    `bson:"created_at"`
	ExpiresAt time.Time    `bson:"expires_at"`
}

// NewMongo connects to uri and uses the named database.
func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "recipes"
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "mongo: ping")
	}
	return newMongoStore(client.Database(database)), nil
}

func newMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:     db,
		cache:  db.Collection(collRecipeCache),
		quotas: db.Collection(collQuotas),
		shares: db.Collection(collShares),
	}
}

// Migrate creates TTL indexes so the server also expires documents on its own.
func (s *MongoStore) Migrate(ctx context.Context) error {
	ttl := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	for _, coll := range []*mongo.Collection{s.cache, s.shares} {
		if _, err := coll.Indexes().CreateOne(ctx, ttl); err != nil {
			return eris.Wrapf(err, "mongo: create ttl index on %s", coll.Name())
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.Client().Ping(ctx, nil), "mongo: ping")
}

func (s *MongoStore) Close() error {
	return eris.Wrap(s.db.Client().Disconnect(context.Background()), "mongo: disconnect")
}

func (s *MongoStore) GetCachedRecipe(ctx context.Context, url string, now time.Time) (*CacheEntry, error) {
	var doc mongoCacheDoc
	err := s.cache.FindOne(ctx, bson.D{
		{Key: "_id", Value: url},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "mongo: get cached recipe")
	}
	return &CacheEntry{
		URL:       doc.URL,
		Recipe:    doc.Recipe,
		StoredAt:  doc.StoredAt.UTC(),
		ExpiresAt: doc.ExpiresAt.UTC(),
	}, nil
}

// SetCachedRecipe replaces only an expired document. A live one makes the
// upsert collide on _id, which is treated as success.
func (s *MongoStore) SetCachedRecipe(ctx context.Context, entry CacheEntry) error {
	filter := bson.D{
		{Key: "_id", Value: entry.URL},
		{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: entry.StoredAt}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "recipe", Value: entry.Recipe},
		{Key: "stored_at", Value: entry.StoredAt},
		{Key: "expires_at", Value: entry.ExpiresAt},
	}}}
	_, err := s.cache.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return eris.Wrap(err, "mongo: set cached recipe")
}

func (s *MongoStore) DeleteExpiredRecipes(ctx context.Context, now time.Time) (int, error) {
	res, err := s.cache.DeleteMany(ctx, bson.D{{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, eris.Wrap(err, "mongo: delete expired recipes")
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) GetQuota(ctx context.Context, identity string) (*QuotaRecord, error) {
	var doc mongoQuotaDoc
	err := s.quotas.FindOne(ctx, bson.D{{Key: "_id", Value: identity}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "mongo: get quota")
	}
	return &QuotaRecord{Identity: doc.Identity, Count: doc.Count, PeriodStart: doc.PeriodStart.UTC()}, nil
}

func (s *MongoStore) IncrementQuota(ctx context.Context, identity string, periodStart time.Time) (int, error) {
	stale := bson.D{{Key: "$lt", Value: bson.A{"$period_start", periodStart}}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "count", Value: bson.D{{Key: "$cond", Value: bson.A{
			stale, 1, bson.D{{Key: "$add", Value: bson.A{"$count", 1}}},
		}}}},
		{Key: "period_start", Value: bson.D{{Key: "$cond", Value: bson.A{
			stale, periodStart, "$period_start",
		}}}},
		{Key: "updated_at", Value: "$$NOW"},
	}}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc mongoQuotaDoc
	err := s.quotas.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: identity}}, update, opts).Decode(&doc)
	if err != nil {
		return 0, eris.Wrap(err, "mongo: increment quota")
	}
	return doc.Count, nil
}

func (s *MongoStore) GetShare(ctx context.Context, id string, now time.Time) (*Share, error) {
	var doc mongoShareDoc
	err := s.shares.FindOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "mongo: get share")
	}
	return &Share{
		ID:        doc.ID,
		Recipe:    doc.Recipe,
		SourceURL: doc.SourceURL,
		CreatedAt: doc.CreatedAt.UTC(),
		ExpiresAt: doc.ExpiresAt.UTC(),
	}, nil
}

func (s *MongoStore) PutShare(ctx context.Context, share Share) error {
	_, err := s.shares.InsertOne(ctx, mongoShareDoc{
		ID:        share.ID,
		Recipe:    share.Recipe,
		SourceURL: share.SourceURL,
		CreatedAt: share.CreatedAt,
		ExpiresAt: share.ExpiresAt,
	})
	return eris.Wrap(err, "mongo: put share")
}
