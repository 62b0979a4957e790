package report

import (
	"fmt"
	"strings"
	"time"
)

// Issue is one issue-tracker entry.
type Issue struct {
	Key     string
	Summary string
	Status  string
	Updated time.Time
}

// ProjectIssues is one issue-tracker project and its recently updated issues.
type ProjectIssues struct {
	Key    string
	Issues []Issue
}

// IssuesBuilder renders the daily issue report. Each project becomes a
// section whose heading carries the project key, which the merge step
// matches by team id.
type IssuesBuilder struct{}

// Build renders projects for date. Projects without issues are left out.
func (IssuesBuilder) Build(date time.Time, projects []ProjectIssues) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Jira 이슈 내역\n\n", date.Format(DateLayout))
	for _, project := range projects {
		if len(project.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", project.Key)
		for _, issue := range project.Issues {
			fmt.Fprintf(&b, "- %s\n", issue.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Document renders the issue report as a parsed document.
func (i IssuesBuilder) Document(date time.Time, projects []ProjectIssues) Document {
	return ParseDocument(i.Build(date, projects))
}
