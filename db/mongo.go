package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/intelogroup/searchmatic/internal/utils"
)

// Mongo holds the document store for raw imported citations. Reference
// managers disagree on field sets, so the untouched payloads land here and
// normalized rows are promoted into the relational studies table.
type Mongo struct {
	Client      *mongo.Client
	Database    *mongo.Database
	RawArticles *mongo.Collection
}

// RawArticle is one imported citation payload exactly as received.
type RawArticle struct {
	ID         string         `bson:"_id"`
	ProjectID  string         `bson:"project_id"`
	OwnerID    string         `bson:"owner_id"`
	Source     string         `bson:"source"`
	Payload    map[string]any `bson:"payload"`
	ImportedAt time.Time      `bson:"imported_at"`
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(dialCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(pingCtx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	database := client.Database(cfg.Database)
	store := &Mongo{
		Client:      client,
		Database:    database,
		RawArticles: database.Collection("raw_articles"),
	}

	return store, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) EnsureCollections(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.RawArticles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "imported_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure raw article index: %w", err)
	}

	return nil
}

func (m *Mongo) InsertRawArticles(ctx context.Context, articles []RawArticle) error {
	if len(articles) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(articles))
	for _, article := range articles {
		docs = append(docs, article)
	}

	if _, err := m.RawArticles.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo: insert raw articles: %w", err)
	}
	return nil
}

func (m *Mongo) ListRawArticles(ctx context.Context, ownerID, projectID string) ([]RawArticle, error) {
	filter := bson.M{"project_id": projectID, "owner_id": ownerID}
	opts := options.Find().SetSort(bson.D{{Key: "imported_at", Value: -1}})

	cursor, err := m.RawArticles.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list raw articles: %w", err)
	}
	defer cursor.Close(ctx)

	articles := make([]RawArticle, 0)
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, fmt.Errorf("mongo: decode raw articles: %w", err)
	}
	return articles, nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
