// Package genai implements the generation service collaborator using the
// OpenAI chat completions API.
//
// It covers the four wizard operations: prompt analysis, dynamic question
// generation, answer quality assessment, and final output generation. Every
// call sends a fixed system prompt, requests JSON, strips markdown fences
// from the reply, and decodes it into the corresponding models type.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/midorihq/midori/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default client configuration constants
const (
	// DefaultModel is the chat model used for all wizard operations.
	DefaultModel = openai.ChatModelGPT4oMini
	// DefaultTimeout bounds each generation request.
	DefaultTimeout = 30 * time.Second
	// DefaultTemperature keeps structured JSON output stable.
	DefaultTemperature = 0.3
)

// Per-operation completion token budgets.
const (
	analysisMaxTokens  = 2000
	questionsMaxTokens = 2000
	qualityMaxTokens   = 1500
	finalMaxTokens     = 3000
)

// Error variables for better error handling and testability
var (
	ErrAPIKeyNotSet      = errors.New("OPENAI_API_KEY not set")
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyResponseBody = errors.New("empty response content")
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK to the chatService interface.
type openaiChatService struct {
	client openai.Client
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the generation client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option defines a configuration option for the generation client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat model used for all operations.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = timeout
	}
}

// Client performs the wizard's generation service operations.
type Client struct {
	chat    chatService
	model   string
	timeout time.Duration
}

// NewClient initializes a generation client, reading OPENAI_API_KEY from the
// environment when no key option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("genai.NewClient: API key not configured")
		return nil, ErrAPIKeyNotSet
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	slog.Debug("genai.NewClient: creating client", "model", model, "timeout", timeout)
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{chat: openaiChatService{client: cli}, model: model, timeout: timeout}, nil
}

// Analyze interprets a free-text website prompt into a structured analysis.
func (c *Client) Analyze(ctx context.Context, prompt string) (*models.Analysis, error) {
	if err := models.ValidatePrompt(prompt); err != nil {
		return nil, err
	}

	slog.Debug("Client.Analyze: requesting analysis", "prompt_length", len(prompt))
	content, err := c.complete(ctx, analysisSystemPrompt, strings.TrimSpace(prompt), analysisMaxTokens)
	if err != nil {
		return nil, err
	}

	var analysis models.Analysis
	if err := decodeJSON(content, &analysis); err != nil {
		slog.Warn("Client.Analyze: malformed analysis response", "error", err)
		return nil, err
	}
	slog.Debug("Client.Analyze: analysis received", "projectType", analysis.ProjectType, "complexity", analysis.Complexity)
	return &analysis, nil
}

// GenerateQuestions produces the dynamic question list for an analysis.
// Callers fall back to the local generator when this fails.
func (c *Client) GenerateQuestions(ctx context.Context, analysis *models.Analysis) ([]models.Question, error) {
	if analysis == nil {
		return nil, models.ErrNoAnalysis
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	slog.Debug("Client.GenerateQuestions: requesting questions", "projectType", analysis.ProjectType)
	content, err := c.complete(ctx, questionsSystemPrompt, string(payload), questionsMaxTokens)
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	if err := decodeJSON(content, &questions); err != nil {
		slog.Warn("Client.GenerateQuestions: malformed questions response", "error", err)
		return nil, err
	}
	slog.Debug("Client.GenerateQuestions: questions received", "count", len(questions))
	return questions, nil
}

// AssessQuality scores the collected answers against the conversation context.
func (c *Client) AssessQuality(ctx context.Context, answers models.UserAnswers, convCtx models.ConversationContext) (*models.Quality, error) {
	if convCtx.Analysis == nil {
		return nil, models.ErrNoAnalysis
	}
	if len(answers) == 0 {
		return nil, models.ErrNoAnswers
	}

	payload, err := json.Marshal(struct {
		Answers models.UserAnswers         `json:"answers"`
		Context models.ConversationContext `json:"context"`
	}{Answers: answers, Context: convCtx})
	if err != nil {
		return nil, fmt.Errorf("failed to encode assessment input: %w", err)
	}

	slog.Debug("Client.AssessQuality: requesting assessment", "answer_count", len(answers))
	content, err := c.complete(ctx, qualitySystemPrompt, string(payload), qualityMaxTokens)
	if err != nil {
		return nil, err
	}

	var quality models.Quality
	if err := decodeJSON(content, &quality); err != nil {
		slog.Warn("Client.AssessQuality: malformed quality response", "error", err)
		return nil, err
	}
	slog.Debug("Client.AssessQuality: assessment received", "overallScore", quality.OverallScore)
	return &quality, nil
}

// GenerateFinalOutput produces the website configuration and summary from the
// analysis, the collected answers, and the quality assessment.
func (c *Client) GenerateFinalOutput(ctx context.Context, analysis *models.Analysis, answers models.UserAnswers, quality *models.Quality) (*models.FinalOutput, error) {
	if analysis == nil {
		return nil, models.ErrNoAnalysis
	}
	if len(answers) == 0 {
		return nil, models.ErrNoAnswers
	}
	if quality == nil {
		return nil, models.ErrNoQuality
	}

	payload, err := json.Marshal(struct {
		Analysis *models.Analysis   `json:"analysis"`
		Answers  models.UserAnswers `json:"answers"`
		Quality  *models.Quality    `json:"quality"`
	}{Analysis: analysis, Answers: answers, Quality: quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode final generation input: %w", err)
	}

	slog.Debug("Client.GenerateFinalOutput: requesting final output", "answer_count", len(answers), "overallScore", quality.OverallScore)
	content, err := c.complete(ctx, finalSystemPrompt, string(payload), finalMaxTokens)
	if err != nil {
		return nil, err
	}

	var output models.FinalOutput
	if err := decodeJSON(content, &output); err != nil {
		slog.Warn("Client.GenerateFinalOutput: malformed final response", "error", err)
		return nil, err
	}
	// The model occasionally omits the echoed quality block; carry the input
	// assessment so the output snapshot is never empty.
	if output.Quality.OverallScore == 0 && output.Quality.Completeness == 0 {
		output.Quality = *quality
	}
	slog.Debug("Client.GenerateFinalOutput: final output received", "site", output.WebsiteConfig.Name)
	return &output, nil
}

// complete performs one chat completion with the configured model and timeout
// and returns the first choice's content.
func (c *Client) complete(ctx context.Context, systemPrompt, userContent string, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userContent),
		},
		Temperature: openai.Float(DefaultTemperature),
		MaxTokens:   openai.Int(maxTokens),
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", categorizeError(err)
	}
	if len(resp.Choices) == 0 {
		return "", models.NewServiceError(models.ServiceErrorMalformed, ErrNoChoicesReturned)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", models.NewServiceError(models.ServiceErrorMalformed, ErrEmptyResponseBody)
	}
	return content, nil
}

// decodeJSON strips markdown fences and decodes the model reply into v,
// wrapping any failure as a malformed-response service error.
func decodeJSON(content string, v interface{}) error {
	cleaned := cleanResponse(content)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return models.NewServiceError(models.ServiceErrorMalformed, err)
	}
	return nil
}

// cleanResponse removes ```json / ``` fences the model wraps around JSON.
func cleanResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// categorizeError maps SDK and transport failures onto the service error
// taxonomy the flow controller surfaces to users.
func categorizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewServiceError(models.ServiceErrorTimeout, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		category := models.CategorizeHTTPStatus(apiErr.StatusCode)
		return models.NewServiceErrorStatus(category, apiErr.StatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewServiceError(models.ServiceErrorTimeout, err)
	}

	return models.NewServiceError(models.ServiceErrorNetwork, err)
}
