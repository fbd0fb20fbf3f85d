package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/midorihq/midori/internal/models"
	"github.com/midorihq/midori/internal/store"
)

// stubGenService is a canned-response generation service for handler tests.
type stubGenService struct {
	analysis    *models.Analysis
	analysisErr error
	questions   []models.Question
	quality     *models.Quality
	qualityErr  error
	output      *models.FinalOutput
	outputErr   error
}

func (s *stubGenService) Analyze(ctx context.Context, prompt string) (*models.Analysis, error) {
	if s.analysisErr != nil {
		return nil, s.analysisErr
	}
	return s.analysis, nil
}

func (s *stubGenService) GenerateQuestions(ctx context.Context, analysis *models.Analysis) ([]models.Question, error) {
	return s.questions, nil
}

func (s *stubGenService) AssessQuality(ctx context.Context, answers models.UserAnswers, convCtx models.ConversationContext) (*models.Quality, error) {
	if s.qualityErr != nil {
		return nil, s.qualityErr
	}
	return s.quality, nil
}

func (s *stubGenService) GenerateFinalOutput(ctx context.Context, analysis *models.Analysis, answers models.UserAnswers, quality *models.Quality) (*models.FinalOutput, error) {
	if s.outputErr != nil {
		return nil, s.outputErr
	}
	return s.output, nil
}

func defaultStubService() *stubGenService {
	return &stubGenService{
		analysis: &models.Analysis{
			ProjectType: "business",
			Complexity:  models.ComplexityMedium,
		},
		quality: &models.Quality{OverallScore: 80},
		output: &models.FinalOutput{
			WebsiteConfig: models.WebsiteConfig{Name: "Thread & Co", Type: "business"},
		},
	}
}

func newTestServer(svc *stubGenService) *Server {
	return NewServer(store.NewInMemoryStore(), svc)
}

// doJSON performs a JSON request against the handler and decodes the
// standard response envelope.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp models.APIResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

// registerAndLogin creates an account and returns a live session token.
func registerAndLogin(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, _ := doJSON(t, h, http.MethodPost, "/auth/register", "", models.RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "hunter42x",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed with status %d: %s", rec.Code, rec.Body.String())
	}
	rec, resp := doJSON(t, h, http.MethodPost, "/auth/login", "", models.LoginRequest{
		Email: "alice@example.com", Password: "hunter42x",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", rec.Code, rec.Body.String())
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected login result shape: %T", resp.Result)
	}
	token, _ := result["token"].(string)
	if token == "" {
		t.Fatal("login returned empty token")
	}
	return token
}

func TestRegisterHandler_Validation(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()

	rec, resp := doJSON(t, h, http.MethodPost, "/auth/register", "", models.RegisterRequest{
		Name: "Alice", Email: "not-an-email", Password: "hunter42x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if resp.Status != string(models.APIStatusError) {
		t.Errorf("expected error status, got %s", resp.Status)
	}
}

func TestRegisterHandler_DuplicateEmail(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()

	body := models.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "hunter42x"}
	if rec, _ := doJSON(t, h, http.MethodPost, "/auth/register", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register failed: %d", rec.Code)
	}
	rec, _ := doJSON(t, h, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", rec.Code)
	}
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	registerAndLogin(t, h)

	rec, _ := doJSON(t, h, http.MethodPost, "/auth/login", "", models.LoginRequest{
		Email: "alice@example.com", Password: "wrongpass1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestLoginHandler_RateLimited(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()

	body := models.LoginRequest{Email: "nobody@example.com", Password: "hunter42x"}
	for i := 0; i < 5; i++ {
		rec, _ := doJSON(t, h, http.MethodPost, "/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec, _ := doJSON(t, h, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestRequireSession_Unauthorized(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()

	for _, path := range []string{"/flow/state", "/projects", "/auth/me"} {
		rec, _ := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without session, got %d", path, rec.Code)
		}
	}
	rec, _ := doJSON(t, h, http.MethodGet, "/flow/state", "bogus-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with unknown token, got %d", rec.Code)
	}
}

func TestMeHandler(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, resp := doJSON(t, h, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user, ok := resp.Result.(map[string]interface{})
	if !ok || user["email"] != "alice@example.com" {
		t.Errorf("unexpected user payload: %v", resp.Result)
	}
}

func TestLogoutHandler(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, _ := doJSON(t, h, http.MethodPost, "/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestStartFlowHandler(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, resp := doJSON(t, h, http.MethodPost, "/flow/start", token, models.StartFlowRequest{
		Prompt: "a clothing store website",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected state shape: %T", resp.Result)
	}
	if state["phase"] != string(models.PhaseQuestions) {
		t.Errorf("phase = %v, want %s", state["phase"], models.PhaseQuestions)
	}
}

func TestStartFlowHandler_BlankPrompt(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, _ := doJSON(t, h, http.MethodPost, "/flow/start", token, models.StartFlowRequest{Prompt: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank prompt, got %d", rec.Code)
	}
}

func TestStartFlowHandler_ServiceError(t *testing.T) {
	svc := defaultStubService()
	svc.analysisErr = models.NewServiceErrorStatus(models.ServiceErrorServer, 500, errors.New("boom"))
	h := newTestServer(svc).Handler()
	token := registerAndLogin(t, h)

	rec, resp := doJSON(t, h, http.MethodPost, "/flow/start", token, models.StartFlowRequest{
		Prompt: "a clothing store website",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp.Message != "The server encountered an error. Please try again." {
		t.Errorf("unexpected user message: %q", resp.Message)
	}
}

func TestAnswerHandler_UnknownQuestion(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, _ := doJSON(t, h, http.MethodPost, "/flow/answers", token, models.AnswerRequest{
		QuestionID: "does_not_exist",
		Answer:     models.TextAnswer("hi"),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown question, got %d", rec.Code)
	}
}

func TestWizardEndToEnd(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, _ := doJSON(t, h, http.MethodPost, "/flow/start", token, models.StartFlowRequest{
		Prompt: "an online store for handmade clothing",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("start failed: %d", rec.Code)
	}

	// The stub has no question strategy, so the deterministic generator
	// supplies the questions. Answer the four required leading ones.
	answers := map[string]models.Answer{
		"project_name_and_theme": models.TextAnswer("Thread & Co"),
		"core_features":          models.ListAnswer("Product catalog", "Cart"),
		"target_audience":        models.TextAnswer("Young adults"),
		"additional_features":    models.ListAnswer("Wishlist"),
	}
	for id, ans := range answers {
		rec, _ := doJSON(t, h, http.MethodPost, "/flow/answers", token, models.AnswerRequest{QuestionID: id, Answer: ans})
		if rec.Code != http.StatusOK {
			t.Fatalf("answer %s failed: %d: %s", id, rec.Code, rec.Body.String())
		}
	}

	rec, resp := doJSON(t, h, http.MethodPost, "/flow/validate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate failed: %d", rec.Code)
	}

	rec, resp = doJSON(t, h, http.MethodPost, "/flow/assess", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("assess failed: %d: %s", rec.Code, rec.Body.String())
	}
	state := resp.Result.(map[string]interface{})
	if state["phase"] != string(models.PhaseFinal) {
		t.Fatalf("phase after assess = %v, want %s", state["phase"], models.PhaseFinal)
	}

	rec, resp = doJSON(t, h, http.MethodPost, "/flow/final", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("final failed: %d: %s", rec.Code, rec.Body.String())
	}
	state = resp.Result.(map[string]interface{})
	if state["phase"] != string(models.PhaseComplete) {
		t.Errorf("phase after final = %v, want %s", state["phase"], models.PhaseComplete)
	}

	// Save and fetch the project.
	rec, resp = doJSON(t, h, http.MethodPost, "/projects", token, models.SaveProjectRequest{
		Name: "Thread & Co", Prompt: "an online store for handmade clothing",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save project failed: %d: %s", rec.Code, rec.Body.String())
	}
	saved := resp.Result.(map[string]interface{})
	projectID, _ := saved["id"].(string)
	if !strings.HasPrefix(projectID, "p_") {
		t.Fatalf("saved project id %q missing p_ prefix", projectID)
	}

	rec, resp = doJSON(t, h, http.MethodGet, "/projects", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list projects failed: %d", rec.Code)
	}
	list, ok := resp.Result.([]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("expected 1 project, got %v", resp.Result)
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/projects/"+projectID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete project failed: %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodGet, "/projects/"+projectID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestAssessQualityHandler_BelowGate(t *testing.T) {
	svc := defaultStubService()
	svc.quality = &models.Quality{OverallScore: 55}
	h := newTestServer(svc).Handler()
	token := registerAndLogin(t, h)

	doJSON(t, h, http.MethodPost, "/flow/start", token, models.StartFlowRequest{Prompt: "a blog"})
	doJSON(t, h, http.MethodPost, "/flow/answers", token, models.AnswerRequest{
		QuestionID: "project_name_and_theme", Answer: models.TextAnswer("My Blog"),
	})

	rec, resp := doJSON(t, h, http.MethodPost, "/flow/assess", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("assess failed: %d", rec.Code)
	}
	state := resp.Result.(map[string]interface{})
	if state["phase"] != string(models.PhaseQuality) {
		t.Errorf("phase = %v, want %s", state["phase"], models.PhaseQuality)
	}
}

func TestAssessQualityHandler_Preconditions(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	// No analysis yet.
	rec, _ := doJSON(t, h, http.MethodPost, "/flow/assess", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without analysis, got %d", rec.Code)
	}
}

func TestSaveProjectHandler_NoFinalOutput(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()
	token := registerAndLogin(t, h)

	rec, _ := doJSON(t, h, http.MethodPost, "/projects", token, models.SaveProjectRequest{Name: "Early"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 before wizard completes, got %d", rec.Code)
	}
}

func TestProjectHandler_OtherUsersProjectHidden(t *testing.T) {
	st := store.NewInMemoryStore()
	server := NewServer(st, defaultStubService())
	h := server.Handler()
	token := registerAndLogin(t, h)

	other := models.Project{ID: "p-other", UserID: "someone-else", Name: "Theirs"}
	if err := st.SaveProject(other); err != nil {
		t.Fatalf("seed project failed: %v", err)
	}

	rec, _ := doJSON(t, h, http.MethodGet, "/projects/p-other", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's project, got %d", rec.Code)
	}
	rec, _ = doJSON(t, h, http.MethodDelete, "/projects/p-other", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting another user's project, got %d", rec.Code)
	}
}

func TestSessionCookieAuth(t *testing.T) {
	h := newTestServer(defaultStubService()).Handler()

	doJSON(t, h, http.MethodPost, "/auth/register", "", models.RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "hunter42x",
	})
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(models.LoginRequest{Email: "alice@example.com", Password: "hunter42x"})
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", &buf)
	loginRec := httptest.NewRecorder()
	h.ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login failed: %d", loginRec.Code)
	}

	var cookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("login did not set session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("cookie auth failed: %d", rec.Code)
	}
}
