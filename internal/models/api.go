package models

import (
	"net/mail"
	"strings"
	"unicode"
)

// APIStatus represents standardized response status values.
type APIStatus string

const (
	// APIStatusOK indicates a successful API operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed API operation.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// StartFlowRequest begins a new analysis run for the session's wizard.
type StartFlowRequest struct {
	Prompt string `json:"prompt"`
}

// Validate checks the start request before any network call is made.
func (r *StartFlowRequest) Validate() error {
	return ValidatePrompt(r.Prompt)
}

// AnswerRequest records an answer for a question.
type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     Answer `json:"answer"`
}

// Validate checks the answer request shape.
func (r *AnswerRequest) Validate() error {
	if strings.TrimSpace(r.QuestionID) == "" {
		return ErrEmptyQuestionID
	}
	return nil
}

// GotoQuestionRequest jumps the questionnaire cursor to an index.
type GotoQuestionRequest struct {
	Index int `json:"index"`
}

// SaveProjectRequest persists the wizard's final output as a named project.
type SaveProjectRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt,omitempty"`
}

// Validate checks the save request shape.
func (r *SaveProjectRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyProjectName
	}
	return nil
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks registration input: a parseable email, a display name, and
// a password of at least MinPasswordLength containing a letter and a digit.
func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyDisplayName
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	return ValidatePassword(r.Password)
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

// Validate checks login input without revealing which field is wrong beyond
// basic shape errors.
func (r *LoginRequest) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// ValidateEmail checks that the address is present, within length limits,
// and parseable as a single RFC 5322 address.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return ErrEmptyEmail
	}
	if len(trimmed) > MaxEmailLength {
		return ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrPasswordTooWeak
	}
	return nil
}
