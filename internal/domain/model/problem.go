package model

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Points returns the point value earned by solving a problem of this
// difficulty. Derived, never stored per-problem.
func (d Difficulty) Points() int {
	switch d {
	case DifficultyEasy:
		return 100
	case DifficultyMedium:
		return 200
	case DifficultyHard:
		return 300
	default:
		return 0
	}
}

// ProblemRef is a problem as it appears inside a contest: enough to list,
// route and score it. The full statement and test cases stay server-side.
type ProblemRef struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Slug          string            `json:"slug"`
	Difficulty    Difficulty        `json:"difficulty"`
	Tags          []string          `json:"tags,omitempty"`
	Description   string            `json:"description,omitempty"`
	CodeTemplates map[string]string `json:"code_templates,omitempty"`
	SortOrder     int               `json:"sort_order"`
}

// SupportedLanguages are the languages the execution collaborator accepts.
var SupportedLanguages = []string{"c", "cpp", "java"}

func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
