package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/midorihq/midori/internal/models"
	"github.com/midorihq/midori/internal/questionnaire"
	"github.com/midorihq/midori/internal/util"
)

// Error variables for better error handling and testability
var (
	// ErrOperationInProgress is returned when a mutating operation is
	// dispatched while another remote call is still running.
	ErrOperationInProgress = errors.New("another operation is already in progress")
)

// State is a serializable snapshot of the controller for API responses.
type State struct {
	FlowID             string              `json:"flow_id"`
	Phase              models.Phase        `json:"phase"`
	Analysis           *models.Analysis    `json:"analysis,omitempty"`
	Quality            *models.Quality     `json:"quality,omitempty"`
	FinalOutput        *models.FinalOutput `json:"final_output,omitempty"`
	IsAnalyzing        bool                `json:"is_analyzing"`
	IsAssessingQuality bool                `json:"is_assessing_quality"`
	IsGeneratingFinal  bool                `json:"is_generating_final"`
	Error              string              `json:"error,omitempty"`
	Questionnaire      questionnaire.State `json:"questionnaire"`
}

// Controller owns the wizard phase state machine for one session. All
// mutation goes through its transition methods; a failed remote call never
// advances the phase, and error text is surfaced as state rather than
// panics. It is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	service Service
	engine  *questionnaire.Engine

	id          string
	phase       models.Phase
	analysis    *models.Analysis
	quality     *models.Quality
	finalOutput *models.FinalOutput

	analyzing  bool
	assessing  bool
	generating bool
	errMsg     string
}

// NewController creates a controller in the initial phase with a fresh
// flow ID.
func NewController(service Service) *Controller {
	return &Controller{
		service: service,
		engine:  questionnaire.New(),
		id:      util.GenerateFlowID(),
		phase:   models.PhaseInitial,
	}
}

// ID returns the flow ID identifying this wizard run.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Questionnaire exposes the engine for answer and navigation operations.
func (c *Controller) Questionnaire() *questionnaire.Engine {
	return c.engine
}

// StartAnalysis runs the analysis phase on a free-text prompt. A blank
// prompt produces a local error without any network call. On success the
// phase becomes questions, remote question generation is attempted, and the
// fallback generator guarantees a non-empty question list. Starting a new
// analysis supersedes any previous run: stale quality and final output are
// cleared before the new results become visible.
func (c *Controller) StartAnalysis(ctx context.Context, prompt string) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		slog.Warn("Controller.StartAnalysis: rejected re-entrant call")
		return ErrOperationInProgress
	}
	if err := models.ValidatePrompt(prompt); err != nil {
		c.errMsg = err.Error()
		c.mu.Unlock()
		slog.Debug("Controller.StartAnalysis: prompt rejected", "error", err)
		return err
	}
	c.analyzing = true
	c.errMsg = ""
	c.mu.Unlock()

	analysis, err := c.service.Analyze(ctx, prompt)
	if err != nil {
		c.mu.Lock()
		c.analyzing = false
		c.errMsg = models.ServiceErrorMessage(err)
		c.mu.Unlock()
		slog.Warn("Controller.StartAnalysis: analysis failed", "error", err)
		return err
	}

	// The analyzing flag stays set through question generation so the phase
	// change is published only once the engine holds the new questions; a
	// concurrent snapshot never sees phase questions with an empty list.
	questions := c.generateQuestions(ctx, analysis)
	c.engine.Reset()
	c.engine.SetQuestions(questions)

	c.mu.Lock()
	c.analyzing = false
	// Supersede: downstream artifacts from any earlier run are now stale.
	c.analysis = analysis
	c.quality = nil
	c.finalOutput = nil
	c.phase = models.PhaseQuestions
	c.mu.Unlock()
	slog.Info("Controller.StartAnalysis: analysis complete", "projectType", analysis.ProjectType, "questions", len(questions))
	return nil
}

// generateQuestions tries the remote generator when the analysis carries a
// usable strategy, falling back to the local deterministic generator on any
// failure or empty result.
func (c *Controller) generateQuestions(ctx context.Context, analysis *models.Analysis) []models.Question {
	if analysis.HasQuestionStrategy() {
		questions, err := c.service.GenerateQuestions(ctx, analysis)
		if err == nil && len(questions) > 0 {
			slog.Debug("Controller.generateQuestions: using remote questions", "count", len(questions))
			return questions
		}
		if err != nil {
			slog.Warn("Controller.generateQuestions: remote generation failed, using fallback", "error", err)
		}
	} else {
		slog.Debug("Controller.generateQuestions: no question strategy, using fallback")
	}
	return GenerateFallbackQuestions(analysis)
}

// AssessQuality scores the collected answers. It requires a prior analysis
// and at least one answer; otherwise it records a local error and makes no
// network call. A score at or above the gate advances the phase to final,
// otherwise the phase becomes quality for another round of answers.
func (c *Controller) AssessQuality(ctx context.Context) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		slog.Warn("Controller.AssessQuality: rejected re-entrant call")
		return ErrOperationInProgress
	}
	analysis := c.analysis
	if analysis == nil {
		c.errMsg = models.ErrNoAnalysis.Error()
		c.mu.Unlock()
		return models.ErrNoAnalysis
	}
	answers := c.engine.Answers()
	if len(answers) == 0 {
		c.errMsg = models.ErrNoAnswers.Error()
		c.mu.Unlock()
		return models.ErrNoAnswers
	}
	c.assessing = true
	c.errMsg = ""
	c.mu.Unlock()

	convCtx := models.ConversationContext{
		Analysis:        analysis,
		PreviousAnswers: answers,
		CurrentPhase:    models.PhaseQuality,
	}
	quality, err := c.service.AssessQuality(ctx, answers, convCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessing = false
	if err != nil {
		c.errMsg = models.ServiceErrorMessage(err)
		slog.Warn("Controller.AssessQuality: assessment failed", "error", err)
		return err
	}
	c.quality = quality
	c.phase = nextPhaseAfterQuality(quality)
	slog.Info("Controller.AssessQuality: assessment complete", "overallScore", quality.OverallScore, "phase", c.phase)
	return nil
}

// GenerateFinalOutput produces the terminal website specification. It
// requires the analysis, a quality assessment, and a non-empty answer map;
// otherwise it records a local error and makes no network call.
func (c *Controller) GenerateFinalOutput(ctx context.Context) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		slog.Warn("Controller.GenerateFinalOutput: rejected re-entrant call")
		return ErrOperationInProgress
	}
	analysis := c.analysis
	if analysis == nil {
		c.errMsg = models.ErrNoAnalysis.Error()
		c.mu.Unlock()
		return models.ErrNoAnalysis
	}
	quality := c.quality
	if quality == nil {
		c.errMsg = models.ErrNoQuality.Error()
		c.mu.Unlock()
		return models.ErrNoQuality
	}
	answers := c.engine.Answers()
	if len(answers) == 0 {
		c.errMsg = models.ErrNoAnswers.Error()
		c.mu.Unlock()
		return models.ErrNoAnswers
	}
	c.generating = true
	c.errMsg = ""
	c.mu.Unlock()

	output, err := c.service.GenerateFinalOutput(ctx, analysis, answers, quality)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generating = false
	if err != nil {
		c.errMsg = models.ServiceErrorMessage(err)
		slog.Warn("Controller.GenerateFinalOutput: generation failed", "error", err)
		return err
	}
	c.finalOutput = output
	c.phase = models.PhaseComplete
	slog.Info("Controller.GenerateFinalOutput: flow complete", "site", output.WebsiteConfig.Name)
	return nil
}

// Reset clears all stored results, loading flags, and the error, returns the
// phase to initial, and resets the questionnaire engine. The cleared
// controller identifies as a new run with a fresh flow ID.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.id = util.GenerateFlowID()
	c.phase = models.PhaseInitial
	c.analysis = nil
	c.quality = nil
	c.finalOutput = nil
	c.analyzing = false
	c.assessing = false
	c.generating = false
	c.errMsg = ""
	c.mu.Unlock()
	c.engine.Reset()
	slog.Debug("Controller.Reset: flow state cleared")
}

// ClearError clears only the error field, leaving phase and data untouched.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// Phase returns the current flow phase.
func (c *Controller) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Analysis returns the stored analysis, or nil before one exists.
func (c *Controller) Analysis() *models.Analysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis
}

// Quality returns the stored quality assessment, or nil.
func (c *Controller) Quality() *models.Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// FinalOutput returns the stored final output, or nil.
func (c *Controller) FinalOutput() *models.FinalOutput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalOutput
}

// Err returns the current user-facing error message, empty when none.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Snapshot captures the controller and questionnaire state for transport.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	state := State{
		FlowID:             c.id,
		Phase:              c.phase,
		Analysis:           c.analysis,
		Quality:            c.quality,
		FinalOutput:        c.finalOutput,
		IsAnalyzing:        c.analyzing,
		IsAssessingQuality: c.assessing,
		IsGeneratingFinal:  c.generating,
		Error:              c.errMsg,
	}
	c.mu.Unlock()
	state.Questionnaire = c.engine.Snapshot()
	return state
}

// busyLocked reports whether any remote operation is in flight; callers must
// hold the lock. At most one flag is true at a time.
func (c *Controller) busyLocked() bool {
	return c.analyzing || c.assessing || c.generating
}

// nextPhaseAfterQuality is the pure transition for a successful assessment.
func nextPhaseAfterQuality(quality *models.Quality) models.Phase {
	if quality.MeetsGate() {
		return models.PhaseFinal
	}
	return models.PhaseQuality
}
