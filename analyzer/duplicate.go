package analyzer

import (
	"context"
	"strings"

	"github.com/tnqbao/gau-review-orchestrator/entity"
)

type Corpus interface {
	ApprovedSubmissions(ctx context.Context) ([]entity.ReferenceSubmission, error)
}

// DuplicateDetector looks a submission up in the corpus of already approved projects.
type DuplicateDetector struct {
	corpus  Corpus
	VCSHost string
}

func NewDuplicateDetector(corpus Corpus, vcsHost string) *DuplicateDetector {
	return &DuplicateDetector{corpus: corpus, VCSHost: vcsHost}
}

// Check returns corpus access errors to the caller; it never guesses.
func (d *DuplicateDetector) Check(ctx context.Context, codeURL, demoURL string) (bool, error) {
	corpus, err := d.corpus.ApprovedSubmissions(ctx)
	if err != nil {
		return false, err
	}
	return IsDuplicate(codeURL, demoURL, corpus, d.VCSHost), nil
}

// IsDuplicate matches on exact normalized links, or on owner/repo for repository links.
func IsDuplicate(codeURL, demoURL string, corpus []entity.ReferenceSubmission, vcsHost string) bool {
	code := NormalizeIdentity(codeURL)
	demo := NormalizeIdentity(demoURL)
	codeRepo, codeIsRepo := repoKey(code, vcsHost)

	for _, ref := range corpus {
		existingCode := NormalizeIdentity(ref.CodeURL)
		existingDemo := NormalizeIdentity(ref.PlayableURL)

		if code != "" && existingCode == code {
			return true
		}
		if demo != "" && existingDemo == demo {
			return true
		}
		if codeIsRepo {
			if existingRepo, ok := repoKey(existingCode, vcsHost); ok && existingRepo == codeRepo {
				return true
			}
		}
	}
	return false
}

func repoKey(normalized, vcsHost string) (string, bool) {
	marker := strings.ToLower(vcsHost) + "/"
	idx := strings.LastIndex(normalized, marker)
	if normalized == "" || idx < 0 {
		return "", false
	}
	parts := strings.Split(normalized[idx+len(marker):], "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}
