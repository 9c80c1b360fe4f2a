package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"time"

	"github.com/bryanwahyu/auditor/internal/application"
	"github.com/bryanwahyu/auditor/internal/domain/adapter"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/infra/storage"
)

//go:embed templates/report.html.tmpl
var templatesFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templatesFS, "templates/report.html.tmpl"))

const defaultColor = "#1c7ed6"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)

var categoryTitles = map[audits.Category]string{
	audits.CategoryTechnical:   "Technical SEO",
	audits.CategoryOnPage:      "On-page SEO",
	audits.CategoryPerformance: "Performance",
	audits.CategoryMobile:      "Mobile",
	audits.CategorySecurity:    "Security",
}

// HTMLRenderer renders the report in process and uploads it to the artifact store.
type HTMLRenderer struct {
	store audits.ArtifactStore
	clock application.Clock
}

func NewHTMLRenderer(store audits.ArtifactStore, clock application.Clock) *HTMLRenderer {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &HTMLRenderer{store: store, clock: clock}
}

type categoryView struct {
	Title   string
	Present bool
	Score   int
	Issues  []audits.Issue
}

type reportView struct {
	AuditID    audits.AuditID
	URL        string
	Score      int
	Grade      string
	Summary    string
	Fixes      []audits.Fix
	Categories []categoryView
	BrandName  string
	Color      string
	LogoURL    string
	Generated  string
}

// Render writes <tenant>/audits/<auditID>.html; a rerun overwrites the same object.
func (r *HTMLRenderer) Render(ctx context.Context, req audits.RenderRequest) (string, error) {
	doc, err := Document(req, r.clock.Now())
	if err != nil {
		return "", adapter.InvalidResponse(service, err)
	}
	key := storage.ArtifactKey(req.TenantID, string(req.AuditID), "html")
	url, err := r.store.Put(ctx, key, doc, "text/html; charset=utf-8")
	if err != nil {
		return "", adapter.Classify(service, err)
	}
	return url, nil
}

// Document renders the HTML report bytes.
func Document(req audits.RenderRequest, now time.Time) ([]byte, error) {
	v := reportView{
		AuditID:   req.AuditID,
		URL:       req.URL,
		Score:     req.Score,
		Grade:     grade(req.Score),
		Fixes:     req.TopFixes,
		BrandName: "SEO",
		Color:     defaultColor,
		Generated: now.UTC().Format(time.RFC1123),
	}
	if req.AISummary != nil {
		v.Summary = *req.AISummary
	}
	if b := req.Branding; b != nil {
		if b.Name != "" {
			v.BrandName = b.Name
		}
		if hexColor.MatchString(b.PrimaryColor) {
			v.Color = b.PrimaryColor
		}
		v.LogoURL = b.LogoURL
	}
	for _, c := range audits.Categories {
		cv := categoryView{Title: categoryTitles[c]}
		if res := req.Analysis.Category(c); res != nil {
			cv.Present = true
			cv.Score = clampPercent(res.Score)
			cv.Issues = res.Issues
		}
		v.Categories = append(v.Categories, cv)
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

func grade(score int) string {
	switch {
	case score >= 80:
		return "grade-good"
	case score >= 50:
		return "grade-fair"
	}
	return "grade-poor"
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
