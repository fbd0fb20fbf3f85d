package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Answer is the value recorded for a question: either a single free-text
// string or an ordered list of selected choices. On the wire it is encoded
// as a bare string or a JSON array of strings, matching the questionnaire
// clients.
type Answer struct {
	Text    string
	Choices []string
	// IsList distinguishes an empty list answer from an empty string answer.
	IsList bool
}

// TextAnswer builds a single-string answer.
func TextAnswer(text string) Answer {
	return Answer{Text: text}
}

// ListAnswer builds a multi-select answer.
func ListAnswer(choices ...string) Answer {
	return Answer{Choices: choices, IsList: true}
}

// IsEmpty reports whether the answer counts as unanswered. A string answer
// is empty when it trims to zero length; a list answer is empty only when it
// has zero elements (whitespace-only elements still count as answered).
func (a Answer) IsEmpty() bool {
	if a.IsList {
		return len(a.Choices) == 0
	}
	return strings.TrimSpace(a.Text) == ""
}

// MarshalJSON encodes the answer as a string or an array of strings.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsList {
		if a.Choices == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(a.Choices)
	}
	return json.Marshal(a.Text)
}

// UnmarshalJSON decodes a string or an array of strings into the answer.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = Answer{Text: text}
		return nil
	}
	var choices []string
	if err := json.Unmarshal(data, &choices); err == nil {
		*a = Answer{Choices: choices, IsList: true}
		return nil
	}
	return fmt.Errorf("answer must be a string or an array of strings")
}

// UserAnswers maps question ids to recorded answers.
type UserAnswers map[string]Answer

// Clone returns a shallow copy so callers cannot mutate engine state.
func (ua UserAnswers) Clone() UserAnswers {
	if ua == nil {
		return nil
	}
	out := make(UserAnswers, len(ua))
	for id, ans := range ua {
		out[id] = ans
	}
	return out
}
