package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/internal/utils"
)

// CompletionMessage mirrors OpenAI-compatible chat message payloads.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionUsage contains token usage metadata returned by the API.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionOptions override the configured defaults per call.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completion is the final assistant output of either call shape.
type Completion struct {
	Content string
	Model   string
	Usage   *CompletionUsage
}

// ChunkFunc receives one streamed text delta. Returning an error aborts
// the stream.
type ChunkFunc func(chunk string) error

// CompletionService adapts the OpenAI-compatible chat completions API into
// the two call shapes the chat pipeline consumes: a single awaited call and
// a streaming call with a per-chunk callback.
type CompletionService struct {
	baseURL      string
	apiKey       string
	model        string
	temperature  float64
	maxTokens    int
	client       httpDoer
	streamClient httpDoer
	logger       *zap.SugaredLogger
}

func NewCompletionService(cfg utils.CompletionConfig, logger *zap.SugaredLogger) *CompletionService {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &CompletionService{
		baseURL:      base,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		client:       newDefaultHTTPClient(),
		streamClient: newStreamingHTTPClient(),
		logger:       logger,
	}
}

type completionAPIRequest struct {
	Model       string              `json:"model"`
	Messages    []CompletionMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

type completionAPIChoice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionAPIResponse struct {
	ID      string                `json:"id"`
	Model   string                `json:"model"`
	Choices []completionAPIChoice `json:"choices"`
	Usage   *CompletionUsage      `json:"usage"`
	Error   *completionAPIError   `json:"error,omitempty"`
}

type streamDelta struct {
	Content string `json:"content"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamFrame struct {
	Model   string              `json:"model"`
	Choices []streamChoice      `json:"choices"`
	Usage   *CompletionUsage    `json:"usage,omitempty"`
	Error   *completionAPIError `json:"error,omitempty"`
}

// Complete performs one non-streaming chat completion call.
func (s *CompletionService) Complete(ctx context.Context, messages []CompletionMessage, opts CompletionOptions) (*Completion, error) {
	payload, err := s.buildRequest(messages, opts, false)
	if err != nil {
		return nil, err
	}

	request, err := s.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call completion api: %w", err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, buildCompletionAPIError(response.StatusCode, respBody)
	}

	var apiResp completionAPIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return nil, fmt.Errorf("completion api error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("completion response contained no choices")
	}

	return &Completion{
		Content: apiResp.Choices[0].Message.Content,
		Model:   apiResp.Model,
		Usage:   apiResp.Usage,
	}, nil
}

// StreamComplete performs a streaming chat completion call, invoking onChunk
// for every text delta in arrival order. It returns the accumulated content
// once the stream ends.
func (s *CompletionService) StreamComplete(ctx context.Context, messages []CompletionMessage, opts CompletionOptions, onChunk ChunkFunc) (*Completion, error) {
	payload, err := s.buildRequest(messages, opts, true)
	if err != nil {
		return nil, err
	}

	request, err := s.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "text/event-stream")

	response, err := s.streamClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call completion api: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, buildCompletionAPIError(response.StatusCode, respBody)
	}

	var (
		accumulated strings.Builder
		usage       *CompletionUsage
		model       string
	)

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return nil, fmt.Errorf("decode stream frame: %w", err)
		}

		if frame.Error != nil && frame.Error.Message != "" {
			return nil, fmt.Errorf("completion api error: %s", frame.Error.Message)
		}

		if frame.Model != "" {
			model = frame.Model
		}
		if frame.Usage != nil {
			usage = frame.Usage
		}

		if len(frame.Choices) == 0 {
			continue
		}

		chunk := frame.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}

		accumulated.WriteString(chunk)
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return nil, fmt.Errorf("chunk callback: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read completion stream: %w", err)
	}

	return &Completion{
		Content: accumulated.String(),
		Model:   model,
		Usage:   usage,
	}, nil
}

func (s *CompletionService) buildRequest(messages []CompletionMessage, opts CompletionOptions, stream bool) ([]byte, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("completion api key is not configured")
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = s.model
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = s.temperature
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	payload := completionAPIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion payload: %w", err)
	}
	return body, nil
}

func (s *CompletionService) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	endpoint := s.baseURL + "/chat/completions"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+s.apiKey)
	request.Header.Set("Content-Type", "application/json")
	return request, nil
}
