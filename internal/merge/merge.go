// Package merge stitches the Git report and the issue report into one
// per-team daily document.
package merge

import (
	"strings"
	"unicode/utf8"

	"github.com/Bada35/Write-With-Jira/internal/report"
)

const (
	issuesHeading  = "### Jira 완료된 이슈"
	commitsHeading = "### Git 커밋 내역"

	// minCommitsBody guards against near-empty Git sections such as a
	// dangling bullet.
	minCommitsBody = 2
)

// Merger combines report documents team by team.
type Merger struct {
	// TeamIDs lists the teams in output order.
	TeamIDs []string
	// RepoPrefix and RepoPathPrefix qualify a team id into the repository
	// path that heads its Git section, for example "/s12-final/" + "S12P31"
	// + "E201".
	RepoPrefix     string
	RepoPathPrefix string
}

// Merge parses both documents and merges them. Empty text is an empty
// document.
func (m Merger) Merge(gitText, issueText string) string {
	return m.MergeDocuments(report.ParseDocument(gitText), report.ParseDocument(issueText))
}

// MergeDocuments merges already parsed documents. The developer summary
// section of git, when present, goes first. Every team with an issue section
// or a Git section gets one block; teams with neither are left out. Only the
// first matching section of each document is used.
func (m Merger) MergeDocuments(git, issues report.Document) string {
	var b strings.Builder

	if summary, ok := git.Find(func(heading string) bool {
		return strings.HasPrefix(heading, report.DeveloperSummaryHeading)
	}); ok {
		b.WriteString(summary.Heading)
		b.WriteString("\n")
		b.WriteString(summary.Body)
		b.WriteString("\n\n")
	}

	for _, team := range m.TeamIDs {
		issueSection, hasIssues := issues.Find(headingMatcher(team))
		gitSection, hasGit := git.Find(headingMatcher(m.RepositoryPath(team)))
		if !hasIssues && !hasGit {
			continue
		}

		b.WriteString("\n" + report.SectionPrefix + team + "팀\n\n")
		if hasIssues {
			b.WriteString(issuesHeading + "\n")
			b.WriteString(strings.TrimSpace(issueSection.Body))
			b.WriteString("\n\n")
		}
		if hasGit {
			body := strings.TrimSpace(gitSection.Body)
			if utf8.RuneCountInString(body) > minCommitsBody {
				b.WriteString(commitsHeading + "\n")
				b.WriteString(body)
				b.WriteString("\n\n")
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// RepositoryPath returns the qualified repository path for team.
func (m Merger) RepositoryPath(team string) string {
	return m.RepoPathPrefix + m.RepoPrefix + team
}

// headingMatcher matches headings containing marker where the marker is not
// followed by an ASCII letter or digit, so "E20" does not match "E201".
func headingMatcher(marker string) func(string) bool {
	return func(heading string) bool {
		return containsBounded(report.Section{Heading: heading}.Title(), marker)
	}
}

func containsBounded(text, marker string) bool {
	if marker == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(marker); {
		i := strings.Index(text[offset:], marker)
		if i < 0 {
			return false
		}
		end := offset + i + len(marker)
		if end == len(text) || !isASCIIAlnum(text[end]) {
			return true
		}
		offset += i + 1
	}
	return false
}

func isASCIIAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
