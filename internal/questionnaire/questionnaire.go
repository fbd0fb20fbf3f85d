// Package questionnaire implements the answer-collection engine for the
// wizard: the ordered question list, the answer map, the cursor, per-question
// validation errors, and derived progress.
//
// The engine never returns errors from its methods; all validation outcomes
// are expressed as state the caller inspects. Required-answer gating applies
// only on forward navigation.
package questionnaire

import (
	"log/slog"
	"math"
	"sync"

	"github.com/midorihq/midori/internal/models"
)

// Validation messages surfaced in the error map.
const (
	// MsgAnswerRequired is set by batch validation for unanswered required questions.
	MsgAnswerRequired = "This question requires an answer."
	// MsgAnswerBeforeNext is set when forward navigation is blocked.
	MsgAnswerBeforeNext = "Please answer this question before continuing."
)

// Engine owns questionnaire state for one wizard session. It is safe for
// concurrent use by HTTP handlers.
type Engine struct {
	mu           sync.Mutex
	questions    []models.Question
	answers      models.UserAnswers
	currentIndex int
	errors       map[string]string
	complete     bool
}

// New creates an empty questionnaire engine.
func New() *Engine {
	return &Engine{
		answers: make(models.UserAnswers),
		errors:  make(map[string]string),
	}
}

// SetQuestions replaces the question list, resets the cursor to 0, and clears
// the completion flag and all errors. An empty list is allowed and yields a
// degenerate no-current-question state.
func (e *Engine) SetQuestions(questions []models.Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	slog.Debug("Engine.SetQuestions: replacing question list", "count", len(questions))
	e.questions = append([]models.Question(nil), questions...)
	e.currentIndex = 0
	e.complete = false
	e.errors = make(map[string]string)
}

// AddQuestion appends a question to the end of the list.
func (e *Engine) AddQuestion(q models.Question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.questions = append(e.questions, q)
}

// RemoveQuestion deletes a question along with its answer and error. The
// cursor is clamped if it pointed past the shortened list.
func (e *Engine) RemoveQuestion(questionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	filtered := e.questions[:0]
	for _, q := range e.questions {
		if q.ID != questionID {
			filtered = append(filtered, q)
		}
	}
	e.questions = filtered
	delete(e.answers, questionID)
	delete(e.errors, questionID)
	if e.currentIndex >= len(e.questions) && e.currentIndex > 0 {
		e.currentIndex = len(e.questions) - 1
	}
}

// SetAnswer upserts the answer for a question id and clears any existing
// validation error for it. Errors are re-evaluated only at navigation time.
func (e *Engine) SetAnswer(questionID string, answer models.Answer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers[questionID] = answer
	delete(e.errors, questionID)
}

// SetAnswers replaces the whole answer map.
func (e *Engine) SetAnswers(answers models.UserAnswers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers = answers.Clone()
	if e.answers == nil {
		e.answers = make(models.UserAnswers)
	}
}

// ClearAnswers removes all answers and errors without touching the questions
// or the cursor.
func (e *Engine) ClearAnswers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers = make(models.UserAnswers)
	e.errors = make(map[string]string)
}

// NextQuestion advances the cursor. If the current question is required and
// unanswered, it records an error and stays put. At the last index with a
// valid answer it sets the completion flag without moving; repeated calls
// once complete are idempotent.
func (e *Engine) NextQuestion() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentIndex < len(e.questions) {
		current := e.questions[e.currentIndex]
		if current.Required && e.answerEmpty(current.ID) {
			slog.Debug("Engine.NextQuestion: required question unanswered", "questionID", current.ID, "index", e.currentIndex)
			e.errors[current.ID] = MsgAnswerBeforeNext
			return
		}
	}

	if e.currentIndex >= len(e.questions)-1 {
		e.complete = true
		e.errors = make(map[string]string)
		return
	}
	e.currentIndex++
	e.errors = make(map[string]string)
}

// PreviousQuestion moves the cursor back with a floor at 0. It clears errors
// and the completion flag and never re-validates.
func (e *Engine) PreviousQuestion() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentIndex > 0 {
		e.currentIndex--
	}
	e.complete = false
	e.errors = make(map[string]string)
}

// GoToQuestion clamps the index into [0, len-1], clears errors and the
// completion flag, and never re-validates.
func (e *Engine) GoToQuestion(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if max := len(e.questions) - 1; index > max {
		if max < 0 {
			max = 0
		}
		index = max
	}
	e.currentIndex = index
	e.complete = false
	e.errors = make(map[string]string)
}

// ValidateAllAnswers scans every required question and returns the id→error
// map for unanswered ones, storing it as the engine's error state. The cursor
// is not moved.
func (e *Engine) ValidateAllAnswers() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := make(map[string]string)
	for _, q := range e.questions {
		if q.Required && e.answerEmpty(q.ID) {
			errs[q.ID] = MsgAnswerRequired
		}
	}
	e.errors = errs
	return copyErrors(errs)
}

// ClearErrors removes all validation errors.
func (e *Engine) ClearErrors() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = make(map[string]string)
}

// CurrentQuestion returns the question under the cursor, or nil when the
// list is empty.
func (e *Engine) CurrentQuestion() *models.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentIndex < 0 || e.currentIndex >= len(e.questions) {
		return nil
	}
	q := e.questions[e.currentIndex]
	return &q
}

// QuestionByID returns the question with the given id, or nil.
func (e *Engine) QuestionByID(questionID string) *models.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.questions {
		if q.ID == questionID {
			out := q
			return &out
		}
	}
	return nil
}

// IsQuestionAnswered reports whether a non-empty answer exists for the id.
func (e *Engine) IsQuestionAnswered(questionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.answerEmpty(questionID)
}

// Progress returns the percentage of questions with a non-empty answer,
// rounded to the nearest integer; 0 when the question list is empty.
func (e *Engine) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.questions) == 0 {
		return 0
	}
	answered := 0
	for _, q := range e.questions {
		if !e.answerEmpty(q.ID) {
			answered++
		}
	}
	return int(math.Round(100 * float64(answered) / float64(len(e.questions))))
}

// Questions returns a copy of the ordered question list.
func (e *Engine) Questions() []models.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Question(nil), e.questions...)
}

// Answers returns a copy of the answer map.
func (e *Engine) Answers() models.UserAnswers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.answers.Clone()
}

// Errors returns a copy of the current validation error map.
func (e *Engine) Errors() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyErrors(e.errors)
}

// CurrentIndex returns the cursor position.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// IsComplete reports whether navigation has advanced past the last question.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.complete
}

// Reset clears all state back to the empty initial form.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	slog.Debug("Engine.Reset: clearing questionnaire state")
	e.questions = nil
	e.answers = make(models.UserAnswers)
	e.currentIndex = 0
	e.complete = false
	e.errors = make(map[string]string)
}

// State is a serializable snapshot of the engine for API responses.
type State struct {
	Questions    []models.Question  `json:"questions"`
	Answers      models.UserAnswers `json:"answers"`
	CurrentIndex int                `json:"current_index"`
	Errors       map[string]string  `json:"errors,omitempty"`
	IsComplete   bool               `json:"is_complete"`
	Progress     int                `json:"progress"`
}

// Snapshot captures the engine state for transport to clients.
func (e *Engine) Snapshot() State {
	questions := e.Questions()
	return State{
		Questions:    questions,
		Answers:      e.Answers(),
		CurrentIndex: e.CurrentIndex(),
		Errors:       e.Errors(),
		IsComplete:   e.IsComplete(),
		Progress:     e.Progress(),
	}
}

// answerEmpty applies the uniform emptiness rule; callers must hold the lock.
func (e *Engine) answerEmpty(questionID string) bool {
	answer, ok := e.answers[questionID]
	if !ok {
		return true
	}
	return answer.IsEmpty()
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for id, msg := range in {
		out[id] = msg
	}
	return out
}
