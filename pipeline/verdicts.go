package pipeline

import (
	"fmt"

	"github.com/tnqbao/gau-review-orchestrator/entity"
)

const (
	invalidIdentityNotes    = "Code URL is not a GitHub link. Must be a valid GitHub repository URL."
	invalidIdentityFeedback = "I couldn't find a GitHub repo in your Code URL field. I need a GitHub link (like https://github.com/username/repo) so I can look at your commits and code. If your code is somewhere else, could you upload it to GitHub? That way I can properly review your work!"

	siteInaccessibleFeedback = "I tried visiting your project's website but couldn't get through - it might be down, need a login, or just not like robots very much! I'm sending this to a human reviewer so they can check it out properly. Don't worry, we'll make sure your project gets reviewed!"

	repositoryInaccessibleFeedback = "I couldn't access your GitHub repo to check out your commits. It might be set to private, the link might be off, or maybe it got deleted? Double-check that your repo is public and the link is right. Either way, I'm flagging this for a human to review!"

	technicalIssueConfidence = 3
	technicalIssueFeedback   = "Hey! I ran into some technical issues trying to load your project - might be a loading problem, auth requirement, or something on my end. I'm sending this to a human reviewer to check it out properly. It might take a bit longer, but we'll make sure your work gets reviewed!"

	errorFeedback = "Oops! Something went wrong on my end while reviewing your project. This is totally a me problem, not yours. Could you reach out to support or try submitting again? Sorry about the hassle!"

	cancelledMessage      = "Job cancelled by user"
	forceCancelledMessage = "Job forcefully cancelled by user"
)

// CancelledStep is the current_step of a stopped job.
const CancelledStep = "Cancelled by user"

func invalidIdentityVerdict() entity.Verdict {
	return entity.Verdict{
		Status:       entity.VerdictFlagged,
		ReviewNotes:  invalidIdentityNotes,
		UserFeedback: invalidIdentityFeedback,
	}
}

func siteInaccessibleVerdict(err error) entity.Verdict {
	return entity.Verdict{
		Status:       entity.VerdictFlagged,
		ReviewNotes:  fmt.Sprintf("Unable to access the playable URL after multiple attempts: %v", err),
		UserFeedback: siteInaccessibleFeedback,
	}
}

func repositoryInaccessibleVerdict(err error) entity.Verdict {
	return entity.Verdict{
		Status:       entity.VerdictFlagged,
		ReviewNotes:  fmt.Sprintf("Unable to access GitHub repository: %v", err),
		UserFeedback: repositoryInaccessibleFeedback,
	}
}

func technicalIssueVerdict(reason string) entity.Verdict {
	return entity.Verdict{
		Status:          entity.VerdictFlagged,
		ConfidenceScore: technicalIssueConfidence,
		ReviewNotes:     fmt.Sprintf("Technical issues prevented automated review: Project testing: %s", reason),
		UserFeedback:    technicalIssueFeedback,
	}
}

// CancelledResult is the terminal payload of a stopped job.
func CancelledResult(force bool) *entity.JobResult {
	message := cancelledMessage
	if force {
		message = forceCancelledMessage
	}
	return &entity.JobResult{Status: entity.ResultStatusCancelled, Message: message}
}
