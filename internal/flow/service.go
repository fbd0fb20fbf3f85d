// Package flow implements the conversation flow controller for the wizard:
// the phase state machine over initial → questions → quality → final →
// complete, the generation service collaborator interface, and the local
// fallback question generator.
package flow

import (
	"context"

	"github.com/midorihq/midori/internal/models"
)

// Service defines the generation service collaborator the controller
// delegates to. internal/genai provides the production implementation; tests
// use counting stubs.
type Service interface {
	// Analyze interprets a free-text prompt into a structured analysis.
	Analyze(ctx context.Context, prompt string) (*models.Analysis, error)

	// GenerateQuestions produces the dynamic question list for an analysis.
	// On failure the controller falls back to GenerateFallbackQuestions.
	GenerateQuestions(ctx context.Context, analysis *models.Analysis) ([]models.Question, error)

	// AssessQuality scores the collected answers.
	AssessQuality(ctx context.Context, answers models.UserAnswers, convCtx models.ConversationContext) (*models.Quality, error)

	// GenerateFinalOutput produces the terminal website specification.
	GenerateFinalOutput(ctx context.Context, analysis *models.Analysis, answers models.UserAnswers, quality *models.Quality) (*models.FinalOutput, error)
}
