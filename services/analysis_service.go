package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/db/models"
)

// AnalysisService screens literature against a project's protocol and
// searches the normalized study set.
type AnalysisService struct {
	completer Completer
	studies   *db.StudyRepository
	protocols *db.ProtocolRepository
	logger    *zap.SugaredLogger
}

func NewAnalysisService(completer Completer, studies *db.StudyRepository, protocols *db.ProtocolRepository, logger *zap.SugaredLogger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AnalysisService{
		completer: completer,
		studies:   studies,
		protocols: protocols,
		logger:    logger,
	}
}

// ScreeningSuggestion is the model's verdict on one abstract.
type ScreeningSuggestion struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
}

// AnalyzeRequest carries one abstract to screen. When ProjectID is set the
// project's protocol criteria are folded into the prompt.
type AnalyzeRequest struct {
	ProjectID string
	Title     string
	Abstract  string
}

const screeningSystemPrompt = `You are a systematic-review screening assistant.
Given a study title and abstract plus the review's inclusion and exclusion criteria,
decide whether the study should be included. Respond with a JSON object:
{"decision": "include" | "exclude" | "unsure", "rationale": "<one short paragraph>"}.
Respond with the JSON object only.`

func (s *AnalysisService) AnalyzeAbstract(ctx context.Context, ownerID string, req AnalyzeRequest) (*ScreeningSuggestion, error) {
	abstract := strings.TrimSpace(req.Abstract)
	if abstract == "" {
		return nil, fmt.Errorf("analysis: abstract cannot be empty")
	}

	var prompt strings.Builder
	if req.ProjectID != "" {
		protocol, err := s.protocols.GetByProject(ctx, ownerID, req.ProjectID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			s.logger.Errorw("load protocol failed", "project_id", req.ProjectID, "error", err)
			return nil, err
		}
		if protocol != nil {
			writeCriteria(&prompt, protocol)
		}
	}

	if title := strings.TrimSpace(req.Title); title != "" {
		fmt.Fprintf(&prompt, "Title: %s\n", title)
	}
	fmt.Fprintf(&prompt, "Abstract:\n%s", abstract)

	messages := []CompletionMessage{
		{Role: models.RoleSystem, Content: screeningSystemPrompt},
		{Role: models.RoleUser, Content: prompt.String()},
	}

	completion, err := s.completer.Complete(ctx, messages, CompletionOptions{Temperature: 0.1})
	if err != nil {
		s.logger.Errorw("screening completion failed", "project_id", req.ProjectID, "error", err)
		return nil, err
	}

	return parseScreeningSuggestion(completion.Content), nil
}

func (s *AnalysisService) SearchStudies(ctx context.Context, ownerID, projectID, query string) ([]models.Study, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("analysis: search query cannot be empty")
	}

	studies, err := s.studies.Search(ctx, ownerID, projectID, query)
	if err != nil {
		s.logger.Errorw("study search failed", "project_id", projectID, "error", err)
		return nil, err
	}
	return studies, nil
}

func writeCriteria(builder *strings.Builder, protocol *models.Protocol) {
	builder.WriteString("Review framework:\n")
	if protocol.Population != "" {
		fmt.Fprintf(builder, "- Population: %s\n", protocol.Population)
	}
	if protocol.Intervention != "" {
		fmt.Fprintf(builder, "- Intervention: %s\n", protocol.Intervention)
	}
	if protocol.Comparison != "" {
		fmt.Fprintf(builder, "- Comparison: %s\n", protocol.Comparison)
	}
	if protocol.Outcome != "" {
		fmt.Fprintf(builder, "- Outcome: %s\n", protocol.Outcome)
	}
	if len(protocol.InclusionCriteria) > 0 {
		fmt.Fprintf(builder, "Inclusion criteria: %s\n", strings.Join(protocol.InclusionCriteria, "; "))
	}
	if len(protocol.ExclusionCriteria) > 0 {
		fmt.Fprintf(builder, "Exclusion criteria: %s\n", strings.Join(protocol.ExclusionCriteria, "; "))
	}
	builder.WriteString("\n")
}

// parseScreeningSuggestion tolerates replies that wrap the JSON in prose or
// code fences; anything unparseable lands as an "unsure" verdict carrying
// the raw reply.
func parseScreeningSuggestion(reply string) *ScreeningSuggestion {
	trimmed := strings.TrimSpace(reply)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var suggestion ScreeningSuggestion
	if err := json.Unmarshal([]byte(trimmed), &suggestion); err != nil || suggestion.Decision == "" {
		return &ScreeningSuggestion{Decision: "unsure", Rationale: strings.TrimSpace(reply)}
	}

	suggestion.Decision = strings.ToLower(strings.TrimSpace(suggestion.Decision))
	switch suggestion.Decision {
	case "include", "exclude", "unsure":
	default:
		suggestion.Decision = "unsure"
	}
	return &suggestion
}
