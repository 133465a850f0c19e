package analyzer

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"json": func(v interface{}) string {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "{}"
		}
		return string(data)
	},
}

func renderPrompt(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var contentPrompt = template.Must(template.New("content").Funcs(promptFuncs).Parse(
	`You are reviewing a web project built by a high school student. Judge the real code and every crawled page.

HTML STRUCTURE (sample):
{{.HTMLSample}}

CSS (first 2000 chars):
{{.CSSSample}}

JAVASCRIPT (first 2000 chars):
{{.JSSample}}

METRICS
HTML: {{.Details.HTMLElements}} elements, {{.Details.CustomIDs}} ids, {{.Details.CustomClasses}} custom classes
CSS: {{.Details.CSSLines}} internal lines, {{.Details.CSSExternal}} external files
JavaScript: {{.Details.JSLines}} internal lines, {{.Details.JSExternal}} external files
Features: {{if .Details.JSFeatures}}{{join .Details.JSFeatures ", "}}{{else}}None{{end}}
Frameworks: {{if .Stack}}{{join .Stack ", "}}{{else}}None{{end}}

SITE CRAWL ({{.Details.PagesCrawled}} pages)
{{if .Pages}}{{json .Pages}}{{else}}Only main page{{end}}

HOW TO JUDGE
- Custom styling, interactions and animations raise originality; untouched framework defaults lower it.
- Modern techniques (async code, classes, API calls) raise quality; copy-pasted snippets lower it.
- is_working: the site loads and has functional elements.
- is_legitimate: the work shows real customization, not an untouched template.
- Scores: 3-4 basic, 5-6 decent, 7-8 good, 9-10 excellent.

HUMAN REVIEW
- Set needs_human_review only when you cannot evaluate the project.
- uncertainty_kind "technical": pages are blank or empty, content cannot load, or errors hide the project.
- uncertainty_kind "analytical": you could evaluate the project but are unsure about its authorship or effort.
- Suspecting AI-written code is not a reason for human review at this step.

Only list red flags you are certain about: unmodified templates, broken core functionality, tutorial copies, placeholder content.

Respond with ONLY valid JSON, no markdown:
{"is_working": true/false, "is_legitimate": true/false, "originality_score": 1-10, "quality_score": 1-10, "features": ["feature"], "red_flags": ["flag"], "assessment": "2-3 sentences covering all pages", "pages_analyzed": {{.Details.PagesCrawled}}, "standout_elements": ["element"], "needs_human_review": true/false, "uncertainty_kind": "technical/analytical/empty", "uncertainty_reason": "why (only when needs_human_review is true)"}`))

var commitPrompt = template.Must(template.New("commits").Funcs(promptFuncs).Parse(
	`You are reviewing the git history of a high school student's project. Be fair but look closely for AI-generated work.

COMMIT DATA
Total commits: {{.TotalCommits}}
Time span: {{.TimeSpanDays}} days
Code changes: +{{.Additions}} -{{.Deletions}}
Authors: {{join .Authors ", "}}
Claimed hours: {{.ClaimedHours}}

COMMITS (newest first)
{{json .Commits}}

SIGNS OF AI-GENERATED CODE
- Messages or author names mentioning an assistant, AI tool or bot.
- Generic messages such as "Add feature" on changes of 1000+ lines.
- Finished code arriving at once with no iteration.

AI INVOLVEMENT
- "none": the student wrote the code.
- "light": AI helped with debugging or snippets, the student clearly coded.
- "heavy": most code came from AI, the student mainly prompted.
- "complete": entirely AI-generated.

TIME
- Does {{.ClaimedHours}} hours fit the pattern? For AI-heavy work estimate 20-40% of the claim.

COMMIT PATTERN
- "consistent": regular work over several sessions.
- "learning": trial and error, fixes and iterations.
- "suspicious": everything at once or clearly generated.

Large commits can be legitimate (local development, migrations, vendored files). Decide from the evidence;
only request human review when commits are missing or empty.

Respond with ONLY valid JSON, no markdown:
{"commits_match_hours": true/false, "commit_pattern": "consistent/learning/suspicious", "commit_quality_score": 1-10, "code_volume_appropriate": true/false, "ai_involvement": "none/light/heavy/complete", "estimated_actual_hours": number, "red_flags": ["indicator"], "assessment": "1-2 sentences on AI usage and time accuracy", "needs_human_review": true/false, "uncertainty_reason": "why (only when needs_human_review is true)"}`))

var verdictPrompt = template.Must(template.New("verdict").Funcs(promptFuncs).Parse(
	`You are making the final call on a high school student's project submission. Be fair and give genuine, friendly feedback.

SUBMISSION
Already submitted: {{.Duplicate}}
Claimed hours: {{.ClaimedHours}}

PROJECT TEST
{{json .Content}}

COMMIT ANALYSIS
{{json .Commits}}
{{if .CustomInstructions}}
CUSTOM REVIEW INSTRUCTIONS
{{.CustomInstructions}}
{{end}}
AI involvement: {{.AIInvolvement}} (none and light are fine, heavy is a concern, complete means no student work)
Estimated actual hours: {{.EstimatedHours}} (claimed {{.ClaimedHours}})

Desktop and mobile apps (features contain "Desktop/mobile application") carry neutral 7/10 scores because they
cannot be tested online. That alone is not a reason to flag.

FLAG only for serious issues:
- the project was already submitted
- ai_involvement is "complete"
- quality below 3 or the project does not work at all
- several serious red flags together, or clear plagiarism

Otherwise APPROVE. Messy commits and time mismatches happen; give the student the benefit of the doubt.

review_notes: 2-3 sentences for internal reviewers on quality, AI involvement, time accuracy and concerns.
user_feedback: 2-3 conversational sentences to the student. For approvals mention specific things you liked.
For flags explain kindly what needs checking, as a person would, never in legal language.

Respond with ONLY valid JSON, no markdown:
{"status": "Approved/Flagged", "confidence_score": 1-10, "review_notes": "internal notes", "user_feedback": "message to the student"}`))

var fieldPrompt = template.Must(template.New("fields").Funcs(promptFuncs).Parse(
	`You are mapping the columns of a submissions table.

FIELDS WITH SAMPLE VALUES
{{json .Examples}}

Match each purpose to one field, using the sample values:
1. "code_url": GitHub repository link
2. "playable_url": link to the live demo or deployed site
3. "hackatime_hours": number of hours worked
4. "auto_review_notes": internal review notes
5. "auto_user_feedback": feedback shown to the submitter
6. "auto_review_tag": single select with values like "Approved" or "Flagged"

Use the EXACT field name from the list, or null when no field fits.

Respond with ONLY valid JSON, no markdown:
{"code_url": "field_or_null", "playable_url": "field_or_null", "hackatime_hours": "field_or_null", "auto_review_notes": "field_or_null", "auto_user_feedback": "field_or_null", "auto_review_tag": "field_or_null"}`))
