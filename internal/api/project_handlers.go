// Package api project handlers: saving and retrieving completed wizard runs.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/midorihq/midori/internal/models"
	"github.com/midorihq/midori/internal/util"
)

// projectsHandler handles GET and POST /projects
func (s *Server) projectsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listProjectsHandler(w, r)
	case http.MethodPost:
		s.saveProjectHandler(w, r)
	default:
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// projectHandler handles GET and DELETE /projects/{id}
func (s *Server) projectHandler(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimPrefix(r.URL.Path, "/projects/")
	if projectID == "" || strings.Contains(projectID, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.getProjectHandler(w, r, projectID)
	case http.MethodDelete:
		s.deleteProjectHandler(w, r, projectID)
	default:
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

func (s *Server) saveProjectHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("saveProjectHandler invoked", "path", r.URL.Path)

	var req models.SaveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("saveProjectHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("saveProjectHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	output := s.sessionController(r).FinalOutput()
	if output == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("No final output to save; complete the wizard first"))
		return
	}

	user := userFromContext(r.Context())
	project := models.Project{
		ID:        util.GenerateRandomID("p_", 32),
		UserID:    user.ID,
		Name:      strings.TrimSpace(req.Name),
		Prompt:    req.Prompt,
		Output:    *output,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.st.SaveProject(project); err != nil {
		slog.Error("saveProjectHandler save failed", "error", err, "userID", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save project"))
		return
	}
	slog.Info("saveProjectHandler project saved", "projectID", project.ID, "userID", user.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(project))
}

func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	projects, err := s.st.ListProjects(user.ID)
	if err != nil {
		slog.Error("listProjectsHandler list failed", "error", err, "userID", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list projects"))
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(projects))
}

func (s *Server) getProjectHandler(w http.ResponseWriter, r *http.Request, projectID string) {
	user := userFromContext(r.Context())
	project, err := s.st.GetProject(projectID)
	if err != nil {
		slog.Error("getProjectHandler lookup failed", "error", err, "projectID", projectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load project"))
		return
	}
	// Another user's project is reported as missing, not forbidden.
	if project == nil || project.UserID != user.ID {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(project))
}

func (s *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request, projectID string) {
	user := userFromContext(r.Context())
	project, err := s.st.GetProject(projectID)
	if err != nil {
		slog.Error("deleteProjectHandler lookup failed", "error", err, "projectID", projectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load project"))
		return
	}
	if project == nil || project.UserID != user.ID {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Project not found"))
		return
	}
	if err := s.st.DeleteProject(projectID); err != nil {
		slog.Error("deleteProjectHandler delete failed", "error", err, "projectID", projectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete project"))
		return
	}
	slog.Info("deleteProjectHandler project deleted", "projectID", projectID, "userID", user.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Project deleted", nil))
}
