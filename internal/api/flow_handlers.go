// Package api wizard flow handlers: analysis, questionnaire navigation,
// quality assessment, and final output generation.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/midorihq/midori/internal/flow"
	"github.com/midorihq/midori/internal/models"
)

// sessionController returns the wizard controller bound to the request's
// login session.
func (s *Server) sessionController(r *http.Request) *flow.Controller {
	return s.controllerFor(tokenFromContext(r.Context()))
}

// writeFlowError maps controller errors onto HTTP status codes. Remote
// generation failures surface the user-facing message, never the raw error.
func writeFlowError(w http.ResponseWriter, err error) {
	var svcErr *models.ServiceError
	switch {
	case errors.Is(err, flow.ErrOperationInProgress):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.As(err, &svcErr):
		writeJSONResponse(w, http.StatusBadGateway, models.Error(svcErr.UserMessage()))
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	}
}

// requirePost rejects non-POST methods, writing the 405 itself.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return false
	}
	return true
}

// startFlowHandler handles POST /flow/start
func (s *Server) startFlowHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("startFlowHandler invoked", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r) {
		return
	}

	var req models.StartFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("startFlowHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("startFlowHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctrl := s.sessionController(r)
	if err := ctrl.StartAnalysis(r.Context(), req.Prompt); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ctrl.Snapshot()))
}

// flowStateHandler handles GET /flow/state
func (s *Server) flowStateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessionController(r).Snapshot()))
}

// answerHandler handles POST /flow/answers
func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("answerHandler invoked", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r) {
		return
	}

	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("answerHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("answerHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	engine := s.sessionController(r).Questionnaire()
	if engine.QuestionByID(req.QuestionID) == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown question id"))
		return
	}
	engine.SetAnswer(req.QuestionID, req.Answer)
	writeJSONResponse(w, http.StatusOK, models.Success(engine.Snapshot()))
}

// nextQuestionHandler handles POST /flow/next
func (s *Server) nextQuestionHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	engine := s.sessionController(r).Questionnaire()
	engine.NextQuestion()
	writeJSONResponse(w, http.StatusOK, models.Success(engine.Snapshot()))
}

// previousQuestionHandler handles POST /flow/previous
func (s *Server) previousQuestionHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	engine := s.sessionController(r).Questionnaire()
	engine.PreviousQuestion()
	writeJSONResponse(w, http.StatusOK, models.Success(engine.Snapshot()))
}

// gotoQuestionHandler handles POST /flow/goto
func (s *Server) gotoQuestionHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req models.GotoQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("gotoQuestionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	engine := s.sessionController(r).Questionnaire()
	engine.GoToQuestion(req.Index)
	writeJSONResponse(w, http.StatusOK, models.Success(engine.Snapshot()))
}

// validateAnswersHandler handles POST /flow/validate
func (s *Server) validateAnswersHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	engine := s.sessionController(r).Questionnaire()
	validationErrors := engine.ValidateAllAnswers()
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"valid":  len(validationErrors) == 0,
		"errors": validationErrors,
	}))
}

// assessQualityHandler handles POST /flow/assess
func (s *Server) assessQualityHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("assessQualityHandler invoked", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r) {
		return
	}
	ctrl := s.sessionController(r)
	if err := ctrl.AssessQuality(r.Context()); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ctrl.Snapshot()))
}

// finalOutputHandler handles POST /flow/final
func (s *Server) finalOutputHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("finalOutputHandler invoked", "method", r.Method, "path", r.URL.Path)
	if !requirePost(w, r) {
		return
	}
	ctrl := s.sessionController(r)
	if err := ctrl.GenerateFinalOutput(r.Context()); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ctrl.Snapshot()))
}

// resetFlowHandler handles POST /flow/reset
func (s *Server) resetFlowHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctrl := s.sessionController(r)
	ctrl.Reset()
	writeJSONResponse(w, http.StatusOK, models.Success(ctrl.Snapshot()))
}

// clearErrorHandler handles POST /flow/clear-error
func (s *Server) clearErrorHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctrl := s.sessionController(r)
	ctrl.ClearError()
	writeJSONResponse(w, http.StatusOK, models.Success(ctrl.Snapshot()))
}
