package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/midorihq/midori/internal/models"
	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp  openai.ChatCompletion
	err   error
	calls int
	last  openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.calls++
	m.last = params
	return m.resp, m.err
}

func chatResponse(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func testClient(chat chatService) *Client {
	return &Client{chat: chat, model: DefaultModel, timeout: DefaultTimeout}
}

func TestAnalyze_Success(t *testing.T) {
	mock := &mockChatService{resp: chatResponse("```json\n" + `{
		"projectType": "e-commerce",
		"complexity": "medium",
		"missingElements": ["budget"],
		"questionStrategy": {"totalQuestions": 8, "adaptiveQuestions": true}
	}` + "\n```")}
	client := testClient(mock)

	analysis, err := client.Analyze(context.Background(), "I need an online clothing store")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if analysis.ProjectType != "e-commerce" {
		t.Errorf("expected projectType e-commerce, got %q", analysis.ProjectType)
	}
	if analysis.Complexity != models.ComplexityMedium {
		t.Errorf("expected medium complexity, got %q", analysis.Complexity)
	}
	if !analysis.HasQuestionStrategy() {
		t.Error("expected a usable question strategy")
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 chat call, got %d", mock.calls)
	}
}

func TestAnalyze_EmptyPrompt(t *testing.T) {
	mock := &mockChatService{}
	client := testClient(mock)

	_, err := client.Analyze(context.Background(), "   ")
	if !errors.Is(err, models.ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected no chat calls for empty prompt, got %d", mock.calls)
	}
}

func TestAnalyze_MalformedResponse(t *testing.T) {
	client := testClient(&mockChatService{resp: chatResponse("not json at all")})

	_, err := client.Analyze(context.Background(), "a shop")
	var svcErr *models.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Category != models.ServiceErrorMalformed {
		t.Errorf("expected malformed service error, got %v", err)
	}
}

func TestAnalyze_NoChoices(t *testing.T) {
	client := testClient(&mockChatService{resp: openai.ChatCompletion{}})

	_, err := client.Analyze(context.Background(), "a shop")
	var svcErr *models.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Category != models.ServiceErrorMalformed {
		t.Errorf("expected malformed service error for no choices, got %v", err)
	}
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned cause, got %v", err)
	}
}

func TestGenerateQuestions_Success(t *testing.T) {
	mock := &mockChatService{resp: chatResponse(`[
		{"id": "project_name_and_theme", "type": "basic", "category": "general", "question": "Name and theme?", "required": true, "priority": "high"},
		{"id": "budget", "type": "contextual", "category": "missing_info", "question": "Budget?", "required": true, "priority": "medium"}
	]`)}
	client := testClient(mock)

	questions, err := client.GenerateQuestions(context.Background(), &models.Analysis{ProjectType: "e-commerce"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].ID != "project_name_and_theme" || !questions[0].Required {
		t.Errorf("unexpected first question: %+v", questions[0])
	}
}

func TestGenerateQuestions_NilAnalysis(t *testing.T) {
	mock := &mockChatService{}
	client := testClient(mock)

	_, err := client.GenerateQuestions(context.Background(), nil)
	if !errors.Is(err, models.ErrNoAnalysis) {
		t.Errorf("expected ErrNoAnalysis, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected no chat calls, got %d", mock.calls)
	}
}

func TestAssessQuality_Success(t *testing.T) {
	client := testClient(&mockChatService{resp: chatResponse(`{
		"completeness": 85, "clarity": 80, "consistency": 75, "confidence": 80,
		"overallScore": 80, "recommendations": ["add a logo"]
	}`)})

	answers := models.UserAnswers{"project_name_and_theme": models.TextAnswer("Sunrise, minimal")}
	ctx := models.ConversationContext{Analysis: &models.Analysis{ProjectType: "blog"}, PreviousAnswers: answers, CurrentPhase: models.PhaseQuality}

	quality, err := client.AssessQuality(context.Background(), answers, ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if quality.OverallScore != 80 {
		t.Errorf("expected overallScore 80, got %d", quality.OverallScore)
	}
	if !quality.MeetsGate() {
		t.Error("expected score 80 to meet the gate")
	}
}

func TestAssessQuality_Preconditions(t *testing.T) {
	mock := &mockChatService{}
	client := testClient(mock)

	_, err := client.AssessQuality(context.Background(), models.UserAnswers{}, models.ConversationContext{Analysis: &models.Analysis{}})
	if !errors.Is(err, models.ErrNoAnswers) {
		t.Errorf("expected ErrNoAnswers, got %v", err)
	}

	_, err = client.AssessQuality(context.Background(), models.UserAnswers{"q": models.TextAnswer("a")}, models.ConversationContext{})
	if !errors.Is(err, models.ErrNoAnalysis) {
		t.Errorf("expected ErrNoAnalysis, got %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected no chat calls, got %d", mock.calls)
	}
}

func TestGenerateFinalOutput_Success(t *testing.T) {
	client := testClient(&mockChatService{resp: chatResponse(`{
		"websiteConfig": {"name": "Sunrise Store", "type": "e-commerce"},
		"summary": {"estimatedTime": "6 weeks"}
	}`)})

	quality := &models.Quality{OverallScore: 82, Completeness: 85}
	output, err := client.GenerateFinalOutput(context.Background(),
		&models.Analysis{ProjectType: "e-commerce"},
		models.UserAnswers{"core_features": models.TextAnswer("catalog, cart")},
		quality)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output.WebsiteConfig.Name != "Sunrise Store" {
		t.Errorf("expected site name Sunrise Store, got %q", output.WebsiteConfig.Name)
	}
	// Quality block omitted by the model is backfilled from the input.
	if output.Quality.OverallScore != 82 {
		t.Errorf("expected backfilled quality score 82, got %d", output.Quality.OverallScore)
	}
}

func TestCategorizeError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category models.ServiceErrorCategory
	}{
		{"timeout", context.DeadlineExceeded, models.ServiceErrorTimeout},
		{"bad request", &openai.Error{StatusCode: 400}, models.ServiceErrorBadRequest},
		{"unauthorized", &openai.Error{StatusCode: 401}, models.ServiceErrorUnauthorized},
		{"forbidden", &openai.Error{StatusCode: 403}, models.ServiceErrorForbidden},
		{"not found", &openai.Error{StatusCode: 404}, models.ServiceErrorNotFound},
		{"server", &openai.Error{StatusCode: 500}, models.ServiceErrorServer},
		{"unknown status", &openai.Error{StatusCode: 418}, models.ServiceErrorUnknown},
		{"network", errors.New("dial tcp: connection refused"), models.ServiceErrorNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := testClient(&mockChatService{err: tc.err})
			_, err := client.Analyze(context.Background(), "a shop")
			var svcErr *models.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if svcErr.Category != tc.category {
				t.Errorf("expected category %s, got %s", tc.category, svcErr.Category)
			}
		})
	}
}

func TestCleanResponse(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1,2]\n```":         `[1,2]`,
		`{"plain":true}`:          `{"plain":true}`,
		"  {\"ws\":1}  ":          `{"ws":1}`,
	}
	for in, want := range cases {
		if got := cleanResponse(in); got != want {
			t.Errorf("cleanResponse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("expected ErrAPIKeyNotSet, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("expected model override, got %q", cli.model)
	}
	if cli.timeout != 5*time.Second {
		t.Errorf("expected timeout override, got %v", cli.timeout)
	}
}
