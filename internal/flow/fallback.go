package flow

import (
	"fmt"
	"strings"

	"github.com/midorihq/midori/internal/models"
)

// Question count caps by analysis complexity.
const (
	maxQuestionsSimple     = 6
	maxQuestionsMedium     = 8
	maxQuestionsComplex    = 10
	maxQuestionsEnterprise = 12
	// maxQuestionsDefault applies when the complexity value is unrecognized.
	maxQuestionsDefault = 8
)

// Fixed question ids shared with the remote generation prompt.
const (
	QuestionIDProjectNameAndTheme = "project_name_and_theme"
	QuestionIDCoreFeatures        = "core_features"
	QuestionIDTargetAudience      = "target_audience"
	QuestionIDAdditionalFeatures  = "additional_features"
)

// fixedTopics are the subjects covered by the four leading questions.
// Missing elements that overlap any of them are skipped to avoid duplicates.
var fixedTopics = []string{
	"project name",
	"design theme",
	"core features",
	"target audience",
	"additional features",
}

// additionalFeatureOptions maps a project type to the closed option list for
// the additional-features question.
var additionalFeatureOptions = map[string][]string{
	"e-commerce": {"Product reviews", "Wishlist", "Discount codes", "Live chat", "Loyalty program"},
	"blog":       {"Newsletter signup", "Comments", "Post categories", "Related posts"},
	"portfolio":  {"Project galleries", "Client testimonials", "Downloadable resume", "Contact form"},
	"business":   {"Online booking", "Customer testimonials", "Team profiles", "Service catalog"},
}

// genericFeatureOptions is used when no mapping exists for the project type.
var genericFeatureOptions = []string{"Contact form", "Social media links"}

// genericFillQuestions is the fixed ordered pool used to fill remaining
// capacity once missing-element questions are exhausted.
var genericFillQuestions = []models.Question{
	{
		ID:       "design_constraints",
		Type:     models.QuestionTypeContextual,
		Category: "general",
		Question: "Do you have any design constraints or existing brand guidelines?",
		Options:  []string{"Yes", "No"},
		Priority: models.PriorityLow,
	},
	{
		ID:       "content_management",
		Type:     models.QuestionTypeContextual,
		Category: "general",
		Question: "Do you need to update the site's content yourself?",
		Options:  []string{"Yes", "No"},
		Priority: models.PriorityLow,
	},
	{
		ID:       "seo",
		Type:     models.QuestionTypeContextual,
		Category: "general",
		Question: "Is search engine optimization important for your site?",
		Options:  []string{"Yes", "No"},
		Priority: models.PriorityLow,
	},
	{
		ID:       "analytics",
		Type:     models.QuestionTypeContextual,
		Category: "general",
		Question: "Do you want visitor analytics and reporting?",
		Options:  []string{"Yes", "No"},
		Priority: models.PriorityLow,
	},
	{
		ID:       "security",
		Type:     models.QuestionTypeContextual,
		Category: "general",
		Question: "Do you have specific security requirements?",
		Options:  []string{"Yes", "No"},
		Priority: models.PriorityLow,
	},
	{
		ID:       "backup",
		Type:     models.QuestionTypeContextual,
		Category: "general",
		Question: "Do you need automated backups of your site?",
		Options:  []string{"Yes", "No"},
		Priority: models.PriorityLow,
	},
}

// GenerateFallbackQuestions deterministically synthesizes a question set from
// an analysis when remote generation is unavailable. The output always starts
// with the four fixed leading questions, then missing-element questions, then
// generic fill questions, and never exceeds the complexity-derived cap. It is
// pure: identical input yields an identical list.
func GenerateFallbackQuestions(analysis *models.Analysis) []models.Question {
	questions := fixedLeadingQuestions(analysis)
	max := maxQuestionCount(analysis)

	if analysis != nil {
		for _, element := range analysis.MissingElements {
			if len(questions) >= max {
				break
			}
			if overlapsFixedTopic(element) {
				continue
			}
			questions = append(questions, missingElementQuestion(element))
		}
	}

	for _, q := range genericFillQuestions {
		if len(questions) >= max {
			break
		}
		questions = append(questions, q)
	}

	return questions
}

// fixedLeadingQuestions returns the four leading questions, always required
// and high priority, in their fixed order.
func fixedLeadingQuestions(analysis *models.Analysis) []models.Question {
	projectType := ""
	if analysis != nil {
		projectType = analysis.ProjectType
	}
	options, ok := additionalFeatureOptions[projectType]
	if !ok {
		options = genericFeatureOptions
	}

	return []models.Question{
		{
			ID:       QuestionIDProjectNameAndTheme,
			Type:     models.QuestionTypeBasic,
			Category: "general",
			Question: "What is your project's name, and what design theme do you have in mind?",
			Required: true,
			Priority: models.PriorityHigh,
		},
		{
			ID:       QuestionIDCoreFeatures,
			Type:     models.QuestionTypeBasic,
			Category: "features",
			Question: "What core features does your website need?",
			Required: true,
			Priority: models.PriorityHigh,
		},
		{
			ID:       QuestionIDTargetAudience,
			Type:     models.QuestionTypeContextual,
			Category: "audience",
			Question: "Who is your primary target audience?",
			Required: true,
			Priority: models.PriorityHigh,
		},
		{
			ID:       QuestionIDAdditionalFeatures,
			Type:     models.QuestionTypeContextual,
			Category: "features",
			Question: "Which additional features would you like to include?",
			Required: true,
			Options:  append([]string(nil), options...),
			Priority: models.PriorityHigh,
		},
	}
}

// maxQuestionCount derives the total question cap from complexity.
func maxQuestionCount(analysis *models.Analysis) int {
	if analysis == nil {
		return maxQuestionsDefault
	}
	switch analysis.Complexity {
	case models.ComplexitySimple:
		return maxQuestionsSimple
	case models.ComplexityMedium:
		return maxQuestionsMedium
	case models.ComplexityComplex:
		return maxQuestionsComplex
	case models.ComplexityEnterprise:
		return maxQuestionsEnterprise
	default:
		return maxQuestionsDefault
	}
}

// overlapsFixedTopic reports whether a missing element already falls under
// one of the four fixed question topics, by substring containment.
func overlapsFixedTopic(element string) bool {
	lowered := strings.ToLower(element)
	for _, topic := range fixedTopics {
		if strings.Contains(lowered, topic) {
			return true
		}
	}
	return false
}

// missingElementQuestion builds a required medium-priority question for one
// missing-information label.
func missingElementQuestion(element string) models.Question {
	return models.Question{
		ID:       "missing_" + slugify(element),
		Type:     models.QuestionTypeContextual,
		Category: "missing_info",
		Question: fmt.Sprintf("Could you tell us more about the %s?", strings.TrimSpace(element)),
		Required: true,
		Priority: models.PriorityMedium,
	}
}

// slugify lowercases a label and replaces non-alphanumeric runs with
// underscores to form a stable question id.
func slugify(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
