package audits

// Category is one analysis dimension.
type Category string

const (
	CategoryTechnical   Category = "technical"
	CategoryOnPage      Category = "onPage"
	CategoryPerformance Category = "performance"
	CategoryMobile      Category = "mobile"
	CategorySecurity    Category = "security"
)

// Categories lists every dimension in report order.
var Categories = []Category{
	CategoryTechnical,
	CategoryOnPage,
	CategoryPerformance,
	CategoryMobile,
	CategorySecurity,
}

// Severity tag of an issue as emitted by the analysis engine.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single finding inside a category.
type Issue struct {
	Type           Severity `json:"type"`
	Code           string   `json:"code,omitempty"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
	Impact         string   `json:"impact,omitempty"`
}

// CategoryResult is the engine's verdict for one dimension.
type CategoryResult struct {
	Score  int             `json:"score"`
	Issues []Issue         `json:"issues"`
	Checks map[string]bool `json:"checks,omitempty"`
	Data   map[string]any  `json:"data,omitempty"`
}

// Analysis is the raw per-category payload of an audit. A nil category means
// the engine returned nothing for it.
type Analysis struct {
	Technical   *CategoryResult `json:"technical"`
	OnPage      *CategoryResult `json:"onPage"`
	Performance *CategoryResult `json:"performance"`
	Mobile      *CategoryResult `json:"mobile"`
	Security    *CategoryResult `json:"security"`
}

// Category returns the result for c, or nil.
func (a Analysis) Category(c Category) *CategoryResult {
	switch c {
	case CategoryTechnical:
		return a.Technical
	case CategoryOnPage:
		return a.OnPage
	case CategoryPerformance:
		return a.Performance
	case CategoryMobile:
		return a.Mobile
	case CategorySecurity:
		return a.Security
	}
	return nil
}

// SubScores extracts the category sub-scores consumed by CompositeScore.
func (a Analysis) SubScores() SubScores {
	pick := func(r *CategoryResult) *int {
		if r == nil {
			return nil
		}
		s := r.Score
		return &s
	}
	return SubScores{
		Technical:   pick(a.Technical),
		OnPage:      pick(a.OnPage),
		Performance: pick(a.Performance),
		Mobile:      pick(a.Mobile),
		Security:    pick(a.Security),
	}
}

// IssueCount returns the number of issues with the given severity across all categories.
func (a Analysis) IssueCount(sev Severity) int {
	n := 0
	for _, c := range Categories {
		r := a.Category(c)
		if r == nil {
			continue
		}
		for _, is := range r.Issues {
			if is.Type == sev {
				n++
			}
		}
	}
	return n
}

// Empty reports whether no category result is present.
func (a Analysis) Empty() bool {
	for _, c := range Categories {
		if a.Category(c) != nil {
			return false
		}
	}
	return true
}
