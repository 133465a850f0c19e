package analyzer

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

const (
	sampleLimit         = 2000
	previewLimit        = 500
	contentTemperature  = 0.3
	desktopAppFeature   = "Desktop/mobile application"
	neutralContentScore = 7
)

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*infra.WebPage, error)
}

// ContentAnalyzer tests a live demo: it fetches the page, measures its markup,
// crawls same-site links and asks the judge for a qualitative assessment.
type ContentAnalyzer struct {
	fetcher      PageFetcher
	Attempts     int
	RetryDelay   time.Duration
	Timeout      time.Duration
	CrawlLimit   int
	CrawlTimeout time.Duration
	MaxTokens    int
}

func NewContentAnalyzer(fetcher PageFetcher, cfg *config.EnvConfig) *ContentAnalyzer {
	return &ContentAnalyzer{
		fetcher:      fetcher,
		Attempts:     cfg.Review.FetchAttempts,
		RetryDelay:   cfg.Review.FetchRetryDelay,
		Timeout:      cfg.Review.FetchTimeout,
		CrawlLimit:   cfg.Review.CrawlPageLimit,
		CrawlTimeout: cfg.Review.CrawlTimeout,
		MaxTokens:    cfg.Review.DefaultJudgmentTokens,
	}
}

type crawledPage struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	ContentPreview string `json:"content_preview"`
	HTMLElements   int    `json:"html_elements"`
	Forms          int    `json:"forms"`
	Buttons        int    `json:"buttons"`
	HasJS          bool   `json:"has_js"`
	HasCustomCSS   bool   `json:"has_custom_css"`
}

type contentAnswer struct {
	IsWorking         bool     `json:"is_working"`
	IsLegitimate      bool     `json:"is_legitimate"`
	OriginalityScore  float64  `json:"originality_score"`
	QualityScore      float64  `json:"quality_score"`
	Features          []string `json:"features"`
	RedFlags          []string `json:"red_flags"`
	Assessment        string   `json:"assessment"`
	PagesAnalyzed     float64  `json:"pages_analyzed"`
	StandoutElements  []string `json:"standout_elements"`
	NeedsHumanReview  bool     `json:"needs_human_review"`
	UncertaintyKind   string   `json:"uncertainty_kind"`
	UncertaintyReason string   `json:"uncertainty_reason"`
}

// NeutralContentSignals stands in for a deliverable that cannot be tested as a website.
func NeutralContentSignals() *entity.ContentSignals {
	return &entity.ContentSignals{
		IsWorking:        true,
		IsLegitimate:     true,
		Features:         []string{desktopAppFeature},
		QualityScore:     neutralContentScore,
		OriginalityScore: neutralContentScore,
		Assessment:       "Desktop/mobile app or video demo - cannot test web functionality. Will rely on commit analysis and code review.",
	}
}

// FailedContentSignals is the negative placeholder used when the test could not finish.
func FailedContentSignals(err error) *entity.ContentSignals {
	return &entity.ContentSignals{
		IsWorking:    false,
		IsLegitimate: false,
		Features:     []string{},
		Assessment:   fmt.Sprintf("Error: %v", err),
	}
}

func (a *ContentAnalyzer) Analyze(ctx context.Context, demoURL string, judge Judge) (*entity.ContentSignals, error) {
	page, err := a.fetchWithRetry(ctx, demoURL)
	if err != nil {
		return nil, err
	}

	landing, err := parseMarkup(page.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	pages := a.crawl(ctx, demoURL, landing.Links)

	css := landing.CSSSource()
	js := landing.JSSource()
	lowerPage := strings.ToLower(page.Body)

	details := &entity.TechnicalDetails{
		HTMLElements:  landing.Elements,
		CustomClasses: len(landing.CustomClasses),
		CustomIDs:     landing.IDs,
		Forms:         landing.Forms,
		Buttons:       landing.Buttons,
		Inputs:        landing.Inputs,
		Scripts:       landing.Scripts,
		CSSLines:      countNonEmptyLines(css),
		CSSExternal:   landing.CSSExternal,
		JSLines:       countNonEmptyLines(js),
		JSExternal:    landing.JSExternal,
		Frameworks:    detectMarkers(lowerPage, frameworkMarkers),
		Libraries:     detectMarkers(lowerPage, libraryMarkers),
		JSFeatures:    detectJSFeatures(js, page.Body),
		PagesCrawled:  len(pages) + 1,
		ResponseCode:  page.StatusCode,
	}

	cssSample := "No custom CSS found"
	if strings.TrimSpace(css) != "" {
		cssSample = truncate(css, sampleLimit)
	}
	jsSample := "No custom JavaScript found"
	if strings.TrimSpace(js) != "" {
		jsSample = truncate(js, sampleLimit)
	}

	prompt, err := renderPrompt(contentPrompt, map[string]interface{}{
		"HTMLSample": truncate(landing.BodyHTML, sampleLimit),
		"CSSSample":  cssSample,
		"JSSample":   jsSample,
		"Details":    details,
		"Stack":      append(append([]string{}, details.Frameworks...), details.Libraries...),
		"Pages":      pages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build content prompt: %w", err)
	}

	answer, err := judge.Invoke(ctx, infra.JudgmentRequest{
		StepName:    "Project Test",
		Prompt:      prompt,
		MaxTokens:   a.MaxTokens,
		Temperature: contentTemperature,
	})
	if err != nil {
		return nil, err
	}

	var decoded contentAnswer
	if err := decodeAnswer(answer, &decoded); err != nil {
		return nil, err
	}

	signals := &entity.ContentSignals{
		IsWorking:         decoded.IsWorking,
		IsLegitimate:      decoded.IsLegitimate,
		QualityScore:      roundScore(decoded.QualityScore),
		OriginalityScore:  roundScore(decoded.OriginalityScore),
		Features:          nonNil(decoded.Features),
		RedFlags:          decoded.RedFlags,
		Assessment:        decoded.Assessment,
		PagesAnalyzed:     int(decoded.PagesAnalyzed),
		StandoutElements:  decoded.StandoutElements,
		NeedsHumanReview:  decoded.NeedsHumanReview,
		UncertaintyKind:   normalizeUncertaintyKind(decoded.UncertaintyKind),
		UncertaintyReason: decoded.UncertaintyReason,
		TechnicalDetails:  details,
	}
	signals.ClampScores()
	return signals, nil
}

// fetchWithRetry retries transport failures only; any HTTP answer counts as reachable.
func (a *ContentAnalyzer) fetchWithRetry(ctx context.Context, demoURL string) (*infra.WebPage, error) {
	attempts := a.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		page, err := a.fetcher.Fetch(ctx, demoURL, a.Timeout)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("%w: unable to access website after %d attempts, the site may be down, private, or blocking automated access: %v",
		ErrTargetUnreachable, attempts, lastErr)
}

func (a *ContentAnalyzer) crawl(ctx context.Context, demoURL string, links []string) []crawledPage {
	targets := sameSiteLinks(demoURL, links, a.CrawlLimit)
	pages := make([]crawledPage, 0, len(targets))

	for _, target := range targets {
		page, err := a.fetcher.Fetch(ctx, target, a.CrawlTimeout)
		if err != nil {
			continue
		}
		m, err := parseMarkup(page.Body)
		if err != nil {
			continue
		}

		title := m.Title
		if title == "" {
			title = "No title"
		}
		pages = append(pages, crawledPage{
			URL:            pageName(target),
			Title:          title,
			ContentPreview: strings.TrimSpace(truncate(m.Text(), previewLimit)),
			HTMLElements:   m.Elements,
			Forms:          m.Forms,
			Buttons:        m.Buttons,
			HasJS:          m.Scripts > 0,
			HasCustomCSS:   m.HasStyle,
		})
	}
	return pages
}

// sameSiteLinks resolves hrefs against the demo URL and keeps distinct links on the same host.
func sameSiteLinks(demoURL string, hrefs []string, limit int) []string {
	base, err := url.Parse(demoURL)
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{demoURL: {}}
	var out []string
	for _, href := range hrefs {
		if len(out) >= limit {
			break
		}
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			continue
		}
		full := resolved.String()
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		out = append(out, full)
	}
	return out
}

func pageName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "index"
	}
	return name
}

func normalizeUncertaintyKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case entity.UncertaintyTechnical:
		return entity.UncertaintyTechnical
	case entity.UncertaintyAnalytical:
		return entity.UncertaintyAnalytical
	}
	return ""
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
