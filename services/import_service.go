package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/db/models"
)

// ImportService lands raw citation payloads in the document store and
// promotes whatever fields it can normalize into the studies table.
type ImportService struct {
	raw     *db.Mongo
	studies *db.StudyRepository
	logger  *zap.SugaredLogger
}

func NewImportService(raw *db.Mongo, studies *db.StudyRepository, logger *zap.SugaredLogger) *ImportService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ImportService{raw: raw, studies: studies, logger: logger}
}

// ImportSummary reports one import batch.
type ImportSummary struct {
	Received int `json:"received"`
	Promoted int `json:"promoted"`
	Skipped  int `json:"skipped"`
}

// ImportArticles stores every payload untouched, then promotes the ones
// carrying at least a title. Promotion failures skip the record rather than
// aborting the batch.
func (s *ImportService) ImportArticles(ctx context.Context, ownerID, projectID, source string, payloads []map[string]any) (*ImportSummary, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("import: at least one article payload is required")
	}

	source = strings.TrimSpace(source)
	if source == "" {
		source = "manual"
	}

	now := time.Now().UTC()
	raw := make([]db.RawArticle, 0, len(payloads))
	for _, payload := range payloads {
		raw = append(raw, db.RawArticle{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			OwnerID:    ownerID,
			Source:     source,
			Payload:    payload,
			ImportedAt: now,
		})
	}

	if err := s.raw.InsertRawArticles(ctx, raw); err != nil {
		s.logger.Errorw("store raw articles failed", "project_id", projectID, "error", err)
		return nil, err
	}

	summary := &ImportSummary{Received: len(payloads)}
	for _, payload := range payloads {
		study := normalizeArticle(ownerID, projectID, payload, now)
		if study == nil {
			summary.Skipped++
			continue
		}
		if err := s.studies.Create(ctx, study); err != nil {
			s.logger.Warnw("promote article failed", "project_id", projectID, "title", study.Title, "error", err)
			summary.Skipped++
			continue
		}
		summary.Promoted++
	}

	return summary, nil
}

func (s *ImportService) ListRawArticles(ctx context.Context, ownerID, projectID string) ([]db.RawArticle, error) {
	articles, err := s.raw.ListRawArticles(ctx, ownerID, projectID)
	if err != nil {
		s.logger.Errorw("list raw articles failed", "project_id", projectID, "error", err)
		return nil, err
	}
	return articles, nil
}

func normalizeArticle(ownerID, projectID string, payload map[string]any, now time.Time) *models.Study {
	title := stringField(payload, "title")
	if title == "" {
		return nil
	}

	return &models.Study{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		OwnerID:         ownerID,
		Title:           title,
		Authors:         stringField(payload, "authors", "author"),
		Journal:         stringField(payload, "journal", "source", "venue"),
		Year:            intField(payload, "year"),
		Abstract:        stringField(payload, "abstract", "summary"),
		DOI:             stringField(payload, "doi"),
		ScreeningStatus: models.ScreeningPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func intField(payload map[string]any, key string) int {
	switch value := payload[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return 0
}
