package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/internal/utils"
)

func TestMongoRawArticleRoundTrip(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	cfg := utils.MongoConfig{
		URI:            uri,
		Database:       "searchmatic_test",
		ConnectTimeout: 5 * time.Second,
	}

	store, err := db.NewMongo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("ensure collections: %v", err)
	}

	ctx := context.Background()
	ownerID := uuid.NewString()
	projectID := uuid.NewString()

	articles := []db.RawArticle{
		{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			OwnerID:   ownerID,
			Source:    "pubmed",
			Payload: map[string]any{
				"title":    "Metformin and HbA1c",
				"pubmedId": "12345",
			},
			ImportedAt: time.Now().UTC().Truncate(time.Millisecond),
		},
		{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			OwnerID:    ownerID,
			Source:     "manual",
			Payload:    map[string]any{"title": "A second citation"},
			ImportedAt: time.Now().UTC().Add(time.Second).Truncate(time.Millisecond),
		},
	}
	defer store.RawArticles.DeleteMany(ctx, map[string]any{"project_id": projectID})

	if err := store.InsertRawArticles(ctx, articles); err != nil {
		t.Fatalf("insert raw articles: %v", err)
	}

	listed, err := store.ListRawArticles(ctx, ownerID, projectID)
	if err != nil {
		t.Fatalf("list raw articles: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(listed))
	}

	// Most recent import first.
	if listed[0].Payload["title"] != "A second citation" {
		t.Fatalf("expected newest article first, got %v", listed[0].Payload)
	}

	// Another owner must not see them.
	other, err := store.ListRawArticles(ctx, uuid.NewString(), projectID)
	if err != nil {
		t.Fatalf("list as other owner: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected owner scoping to hide articles, got %d", len(other))
	}
}
