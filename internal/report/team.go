package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/commits"
)

// DateLayout formats report dates.
const DateLayout = "2006-01-02"

// Team is one team and the repository its commits come from.
type Team struct {
	ID             string
	RepositoryPath string
	Members        []commits.Member
}

// TeamSummary is a team's member reports ordered by descending commit count.
type TeamSummary struct {
	Team             Team
	TotalCommitCount int
	MemberReports    []commits.MemberReport
}

// NewTeamSummary orders reports by descending count; ties keep their input
// order.
func NewTeamSummary(team Team, reports []commits.MemberReport) TeamSummary {
	sorted := slices.Clone(reports)
	slices.SortStableFunc(sorted, func(a, b commits.MemberReport) int {
		return b.Count - a.Count
	})
	total := 0
	for _, report := range sorted {
		total += report.Count
	}
	return TeamSummary{
		Team:             team,
		TotalCommitCount: total,
		MemberReports:    sorted,
	}
}

// HasCommits reports whether any member has at least one commit.
func (s TeamSummary) HasCommits() bool {
	return s.TotalCommitCount > 0
}

// TeamBuilder renders the per-team window report.
type TeamBuilder struct{}

// Build renders summary for the window [start, end].
func (TeamBuilder) Build(summary TeamSummary, start, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s ~ %s 커밋 내역\n\n", start.Format(DateLayout), end.Format(DateLayout))
	fmt.Fprintf(&b, "## %s\n\n", summary.Team.RepositoryPath)

	b.WriteString("### 팀원별 커밋 수 요약\n\n")
	fmt.Fprintf(&b, "- 팀 전체 커밋 수: %d개\n", summary.TotalCommitCount)
	b.WriteString("- 팀원별 커밋 수:\n")
	for _, report := range summary.MemberReports {
		fmt.Fprintf(&b, "  - %s (%s): %d개\n", report.Member.Name(), report.Member.ID, report.Count)
	}
	b.WriteString("\n")

	b.WriteString("### 상세 커밋 내역\n\n")
	for _, report := range summary.MemberReports {
		if report.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "#### %s (%s) - %d개\n", report.Member.Name(), report.Member.ID, report.Count)
		for _, commit := range report.Commits {
			fmt.Fprintf(&b, "- %s\n", commit.Title)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Document renders summary as a parsed document.
func (t TeamBuilder) Document(summary TeamSummary, start, end time.Time) Document {
	return ParseDocument(t.Build(summary, start, end))
}
