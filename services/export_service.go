package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/db/models"
)

// ExportService renders a project's conversations or studies as JSON or CSV
// and records every export in the export log.
type ExportService struct {
	conversations *db.ConversationRepository
	studies       *db.StudyRepository
	exports       *db.ExportRepository
	logger        *zap.SugaredLogger
}

func NewExportService(conversations *db.ConversationRepository, studies *db.StudyRepository, exports *db.ExportRepository, logger *zap.SugaredLogger) *ExportService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ExportService{
		conversations: conversations,
		studies:       studies,
		exports:       exports,
		logger:        logger,
	}
}

// ExportResult is a rendered export payload ready to send to the client.
type ExportResult struct {
	Log         models.ExportLog
	Filename    string
	ContentType string
	Payload     []byte
}

func (s *ExportService) Export(ctx context.Context, ownerID, projectID, kind, format string) (*ExportResult, error) {
	switch format {
	case models.ExportFormatJSON, models.ExportFormatCSV:
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}

	var (
		payload  []byte
		rowCount int
		err      error
	)

	switch kind {
	case models.ExportKindConversations:
		payload, rowCount, err = s.exportConversations(ctx, ownerID, projectID, format)
	case models.ExportKindStudies:
		payload, rowCount, err = s.exportStudies(ctx, ownerID, projectID, format)
	default:
		return nil, fmt.Errorf("export: unsupported kind %q", kind)
	}
	if err != nil {
		s.logger.Errorw("export failed", "project_id", projectID, "kind", kind, "error", err)
		return nil, err
	}

	entry := models.ExportLog{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		OwnerID:   ownerID,
		Kind:      kind,
		Format:    format,
		RowCount:  rowCount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.exports.Insert(ctx, &entry); err != nil {
		s.logger.Errorw("record export failed", "project_id", projectID, "error", err)
		return nil, err
	}

	contentType := "application/json"
	if format == models.ExportFormatCSV {
		contentType = "text/csv"
	}

	return &ExportResult{
		Log:         entry,
		Filename:    fmt.Sprintf("%s-%s.%s", kind, entry.CreatedAt.Format("20060102-150405"), format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func (s *ExportService) History(ctx context.Context, ownerID, projectID string) ([]models.ExportLog, error) {
	logs, err := s.exports.ListByProject(ctx, ownerID, projectID)
	if err != nil {
		s.logger.Errorw("list exports failed", "project_id", projectID, "error", err)
		return nil, err
	}
	return logs, nil
}

type conversationExport struct {
	models.Conversation
	Messages []models.Message `json:"messages"`
}

func (s *ExportService) exportConversations(ctx context.Context, ownerID, projectID, format string) ([]byte, int, error) {
	conversations, err := s.conversations.ListByProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, 0, err
	}

	exported := make([]conversationExport, 0, len(conversations))
	rows := 0
	for _, conv := range conversations {
		messages, err := s.conversations.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, 0, err
		}
		exported = append(exported, conversationExport{Conversation: conv, Messages: messages})
		rows += len(messages)
	}

	if format == models.ExportFormatJSON {
		payload, err := json.MarshalIndent(exported, "", "  ")
		return payload, rows, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"conversation_id", "conversation_title", "message_id", "role", "content", "status", "created_at"}); err != nil {
		return nil, 0, err
	}
	for _, conv := range exported {
		for _, msg := range conv.Messages {
			record := []string{conv.ID, conv.Title, msg.ID, msg.Role, msg.Content, msg.Status, msg.CreatedAt.Format(time.RFC3339)}
			if err := writer.Write(record); err != nil {
				return nil, 0, err
			}
		}
	}
	writer.Flush()
	return buf.Bytes(), rows, writer.Error()
}

func (s *ExportService) exportStudies(ctx context.Context, ownerID, projectID, format string) ([]byte, int, error) {
	studies, err := s.studies.ListByProject(ctx, ownerID, projectID)
	if err != nil {
		return nil, 0, err
	}

	if format == models.ExportFormatJSON {
		payload, err := json.MarshalIndent(studies, "", "  ")
		return payload, len(studies), err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"id", "title", "authors", "journal", "year", "doi", "screening_status"}); err != nil {
		return nil, 0, err
	}
	for _, study := range studies {
		record := []string{study.ID, study.Title, study.Authors, study.Journal, strconv.Itoa(study.Year), study.DOI, study.ScreeningStatus}
		if err := writer.Write(record); err != nil {
			return nil, 0, err
		}
	}
	writer.Flush()
	return buf.Bytes(), len(studies), writer.Error()
}
