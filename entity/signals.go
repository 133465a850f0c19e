package entity

const (
	VerdictApproved = "Approved"
	VerdictFlagged  = "Flagged"
)

const (
	AIInvolvementNone     = "none"
	AIInvolvementLight    = "light"
	AIInvolvementHeavy    = "heavy"
	AIInvolvementComplete = "complete"
)

const (
	UncertaintyTechnical  = "technical"
	UncertaintyAnalytical = "analytical"
)

type IdentityCheck struct {
	CodeURL         string `json:"code_url"`
	IsSupportedHost bool   `json:"is_github"`
}

type DuplicateCheck struct {
	IsDuplicate bool   `json:"is_duplicate"`
	CodeURL     string `json:"code_url"`
	PlayableURL string `json:"playable_url"`
}

// ContentSignals is the judgment of a live demo plus the static metrics collected for it.
type ContentSignals struct {
	IsWorking         bool              `json:"is_working"`
	IsLegitimate      bool              `json:"is_legitimate"`
	QualityScore      int               `json:"quality_score,omitempty"`
	OriginalityScore  int               `json:"originality_score,omitempty"`
	Features          []string          `json:"features"`
	RedFlags          []string          `json:"red_flags,omitempty"`
	Assessment        string            `json:"assessment"`
	PagesAnalyzed     int               `json:"pages_analyzed,omitempty"`
	StandoutElements  []string          `json:"standout_elements,omitempty"`
	NeedsHumanReview  bool              `json:"needs_human_review"`
	UncertaintyReason string            `json:"uncertainty_reason,omitempty"`
	UncertaintyKind   string            `json:"uncertainty_kind,omitempty"`
	TechnicalDetails  *TechnicalDetails `json:"technical_details,omitempty"`
}

type TechnicalDetails struct {
	HTMLElements  int      `json:"html_elements"`
	CustomClasses int      `json:"custom_classes"`
	CustomIDs     int      `json:"custom_ids"`
	Forms         int      `json:"forms"`
	Buttons       int      `json:"buttons"`
	Inputs        int      `json:"inputs"`
	Scripts       int      `json:"scripts"`
	CSSLines      int      `json:"css_lines"`
	CSSExternal   int      `json:"css_external"`
	JSLines       int      `json:"js_lines"`
	JSExternal    int      `json:"js_external"`
	Frameworks    []string `json:"frameworks"`
	Libraries     []string `json:"libraries"`
	JSFeatures    []string `json:"js_features"`
	PagesCrawled  int      `json:"pages_crawled"`
	ResponseCode  int      `json:"response_code"`
}

// CommitSignals is the judgment of a repository's recent history plus its aggregate metrics.
type CommitSignals struct {
	CommitsMatchHours     bool            `json:"commits_match_hours"`
	CommitPattern         string          `json:"commit_pattern"`
	CommitQualityScore    int             `json:"commit_quality_score,omitempty"`
	CodeVolumeAppropriate bool            `json:"code_volume_appropriate"`
	AIInvolvement         string          `json:"ai_involvement,omitempty"`
	EstimatedActualHours  float64         `json:"estimated_actual_hours"`
	RedFlags              []string        `json:"red_flags,omitempty"`
	Assessment            string          `json:"assessment"`
	NeedsHumanReview      bool            `json:"needs_human_review"`
	UncertaintyReason     string          `json:"uncertainty_reason,omitempty"`
	Metadata              *CommitMetadata `json:"metadata,omitempty"`
}

type CommitMetadata struct {
	TotalCommits   int    `json:"total_commits"`
	TimeSpanDays   int    `json:"time_span_days"`
	TotalAdditions int    `json:"total_additions"`
	TotalDeletions int    `json:"total_deletions"`
	TotalAuthors   int    `json:"total_authors"`
	Note           string `json:"note,omitempty"`
}

type Verdict struct {
	Status          string `json:"status"`
	ConfidenceScore int    `json:"confidence_score"`
	ReviewNotes     string `json:"review_notes"`
	UserFeedback    string `json:"user_feedback"`
}

func clampScore(v int) int {
	if v == 0 {
		return 0
	}
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// ClampScores keeps every populated score inside 1..10.
func (s *ContentSignals) ClampScores() {
	s.QualityScore = clampScore(s.QualityScore)
	s.OriginalityScore = clampScore(s.OriginalityScore)
}

func (s *CommitSignals) ClampScores() {
	s.CommitQualityScore = clampScore(s.CommitQualityScore)
}

func (v *Verdict) ClampScores() {
	v.ConfidenceScore = clampScore(v.ConfidenceScore)
}

// ReferenceSubmission is a previously approved project used for duplicate detection.
type ReferenceSubmission struct {
	CodeURL     string `json:"code_url"`
	PlayableURL string `json:"playable_url"`
}
