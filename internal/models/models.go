// Package models defines the core data structures for Midori.
//
// It includes the website analysis, question, quality, and final output types
// shared across the flow, questionnaire, genai, and api modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Phase represents one stage of the conversation flow state machine.
type Phase string

const (
	// PhaseInitial is the starting phase before any analysis has run.
	PhaseInitial Phase = "initial"
	// PhaseQuestions indicates an analysis exists and questions are being answered.
	PhaseQuestions Phase = "questions"
	// PhaseQuality indicates a quality assessment ran but scored below the gate.
	PhaseQuality Phase = "quality"
	// PhaseFinal indicates the quality gate passed and final generation may run.
	PhaseFinal Phase = "final"
	// PhaseComplete indicates the final output has been produced.
	PhaseComplete Phase = "complete"
)

// IsValidPhase checks if the given phase is one of the flow phases.
func IsValidPhase(p Phase) bool {
	switch p {
	case PhaseInitial, PhaseQuestions, PhaseQuality, PhaseFinal, PhaseComplete:
		return true
	default:
		return false
	}
}

// Complexity classifies how involved the requested website is.
type Complexity string

const (
	ComplexitySimple     Complexity = "simple"
	ComplexityMedium     Complexity = "medium"
	ComplexityComplex    Complexity = "complex"
	ComplexityEnterprise Complexity = "enterprise"
)

// QuestionType distinguishes how a question was derived.
type QuestionType string

const (
	// QuestionTypeBasic is a question asked for every project.
	QuestionTypeBasic QuestionType = "basic"
	// QuestionTypeContextual is derived from the specific analysis.
	QuestionTypeContextual QuestionType = "contextual"
	// QuestionTypeFollowup is generated in response to earlier answers.
	QuestionTypeFollowup QuestionType = "followup"
)

// QuestionPriority orders questions by importance.
type QuestionPriority string

const (
	PriorityHigh   QuestionPriority = "high"
	PriorityMedium QuestionPriority = "medium"
	PriorityLow    QuestionPriority = "low"
)

// QuestionStrategy describes how many and what kind of questions the
// analysis recommends asking.
type QuestionStrategy struct {
	TotalQuestions    int      `json:"totalQuestions"`
	QuestionTypes     []string `json:"questionTypes,omitempty"`
	AdaptiveQuestions bool     `json:"adaptiveQuestions"`
	PriorityQuestions []string `json:"priorityQuestions,omitempty"`
}

// DesignPreferences holds the optional visual direction detected in a prompt.
type DesignPreferences struct {
	DesignStyle string `json:"designStyle,omitempty"`
}

// Analysis is the structured interpretation of a free-text website prompt.
// It is immutable once produced; a new analysis run replaces it wholesale.
type Analysis struct {
	ProjectName       string            `json:"projectName,omitempty"`
	ProjectType       string            `json:"projectType"`
	Complexity        Complexity        `json:"complexity"`
	CoreFeatures      []string          `json:"coreFeatures,omitempty"`
	TargetAudience    string            `json:"targetAudience,omitempty"`
	DesignPreferences DesignPreferences `json:"designPreferences,omitempty"`
	MissingElements   []string          `json:"missingElements,omitempty"`
	QuestionStrategy  QuestionStrategy  `json:"questionStrategy"`
}

// HasQuestionStrategy reports whether the analysis carries a usable strategy
// for remote question generation. Without one the fallback generator is used.
func (a *Analysis) HasQuestionStrategy() bool {
	return a != nil && a.QuestionStrategy.TotalQuestions > 0
}

// Question is a single questionnaire entry. Questions are produced once per
// analysis and are immutable; ordering is owned by the questionnaire engine.
type Question struct {
	ID        string           `json:"id"`
	Type      QuestionType     `json:"type"`
	Category  string           `json:"category"`
	Question  string           `json:"question"`
	Required  bool             `json:"required"`
	Options   []string         `json:"options,omitempty"`
	DependsOn []string         `json:"dependsOn,omitempty"`
	Priority  QuestionPriority `json:"priority,omitempty"`
}

// Quality is a scored evaluation of how complete and clear the collected
// answers are. Each dimension is 0-100.
type Quality struct {
	Completeness      int      `json:"completeness"`
	Clarity           int      `json:"clarity"`
	Consistency       int      `json:"consistency"`
	Confidence        int      `json:"confidence"`
	OverallScore      int      `json:"overallScore"`
	Recommendations   []string `json:"recommendations,omitempty"`
	RequiredFollowUps []string `json:"requiredFollowUps,omitempty"`
}

// QualityGateScore is the minimum overall score required to advance from the
// quality phase to final generation.
const QualityGateScore = 70

// MeetsGate reports whether the assessment clears the final-generation gate.
func (q *Quality) MeetsGate() bool {
	return q != nil && q.OverallScore >= QualityGateScore
}

// WebsiteDesign describes the visual direction of the generated site config.
type WebsiteDesign struct {
	DesignStyle     string   `json:"designStyle"`
	PrimaryColors   []string `json:"primaryColors,omitempty"`
	SecondaryColors []string `json:"secondaryColors,omitempty"`
	Typography      string   `json:"typography,omitempty"`
}

// WebsiteContent lists the pages and sections of the generated site config.
type WebsiteContent struct {
	Pages    []string `json:"pages,omitempty"`
	Sections []string `json:"sections,omitempty"`
}

// WebsiteFunctionality flags the functional subsystems the site needs.
type WebsiteFunctionality struct {
	UserManagement bool `json:"userManagement"`
	Payment        bool `json:"payment"`
	Analytics      bool `json:"analytics"`
	SEO            bool `json:"seo"`
}

// WebsiteConfig is the structured site description in the final output.
type WebsiteConfig struct {
	Name           string               `json:"name"`
	Type           string               `json:"type"`
	Features       []string             `json:"features,omitempty"`
	Design         WebsiteDesign        `json:"design"`
	Content        WebsiteContent       `json:"content"`
	Functionality  WebsiteFunctionality `json:"functionality"`
	TargetAudience string               `json:"targetAudience,omitempty"`
	Complexity     string               `json:"complexity,omitempty"`
}

// OutputSummary captures the human-readable portion of the final output.
type OutputSummary struct {
	Requirements    []string `json:"requirements,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	EstimatedTime   string   `json:"estimatedTime,omitempty"`
	EstimatedCost   string   `json:"estimatedCost,omitempty"`
	Risks           []string `json:"risks,omitempty"`
}

// FinalOutput is the terminal artifact of a completed flow.
type FinalOutput struct {
	WebsiteConfig WebsiteConfig `json:"websiteConfig"`
	Summary       OutputSummary `json:"summary"`
	Quality       Quality       `json:"quality"`
}

// ConversationContext carries the prior state sent alongside quality and
// final-generation requests to the generation service.
type ConversationContext struct {
	Analysis        *Analysis   `json:"analysis"`
	PreviousAnswers UserAnswers `json:"previousAnswers,omitempty"`
	CurrentPhase    Phase       `json:"currentPhase"`
}

// Validation constants for input validation
const (
	// MaxPromptLength defines the maximum allowed length for a website prompt
	MaxPromptLength = 5000
	// MinPasswordLength defines the minimum allowed password length
	MinPasswordLength = 8
	// MaxEmailLength defines the maximum allowed email address length
	MaxEmailLength = 254
)

// Error variables for better error handling and testability
var (
	ErrEmptyPrompt      = errors.New("prompt cannot be empty")
	ErrPromptTooLong    = errors.New("prompt exceeds maximum length")
	ErrNoAnalysis       = errors.New("no analysis available; start the flow first")
	ErrNoAnswers        = errors.New("no answers recorded; answer the questions first")
	ErrNoQuality        = errors.New("no quality assessment available; assess quality first")
	ErrEmptyQuestionID  = errors.New("question id cannot be empty")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("email address is not valid")
	ErrEmailTooLong     = errors.New("email exceeds maximum length")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooWeak  = errors.New("password must contain a letter and a digit")
	ErrEmptyDisplayName = errors.New("name cannot be empty")
	ErrEmptyProjectName = errors.New("project name cannot be empty")

	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

// User represents a registered account. The bcrypt hash never leaves the
// store and auth layers.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Session represents a server-side login session identified by an opaque token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Project is a saved final output owned by a user.
type Project struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Prompt    string      `json:"prompt"`
	Output    FinalOutput `json:"output"`
	CreatedAt time.Time   `json:"created_at"`
}

// ValidatePrompt checks a website prompt for the initial analysis phase.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return ErrEmptyPrompt
	}
	if len(prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	return nil
}
