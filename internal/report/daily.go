package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/commits"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DeveloperSummaryHeading is the daily per-developer count section. The
// merge step hoists it to the top of the combined report.
const DeveloperSummaryHeading = SectionPrefix + "팀별 개발자 커밋 수"

// RepoCommits is one repository's commits with resolved author names.
type RepoCommits struct {
	Repository string
	Commits    []commits.Commit
}

type authorGroup struct {
	author  string
	commits []commits.Commit
}

// groupByAuthor groups commits by author in first-seen order.
func groupByAuthor(list []commits.Commit) []authorGroup {
	index := make(map[string]int)
	var groups []authorGroup
	for _, commit := range list {
		i, ok := index[commit.Author]
		if !ok {
			i = len(groups)
			index[commit.Author] = i
			groups = append(groups, authorGroup{author: commit.Author})
		}
		groups[i].commits = append(groups[i].commits, commit)
	}
	return groups
}

// DailyBuilder renders the one-day Git report.
type DailyBuilder struct{}

// Build renders the repositories' commits for date. Repositories without
// commits are left out.
func (DailyBuilder) Build(date time.Time, repos []RepoCommits) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s 커밋 내역\n\n", date.Format(DateLayout))

	collator := collate.New(language.Korean)
	b.WriteString(DeveloperSummaryHeading + "\n")
	for _, repo := range repos {
		if len(repo.Commits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", repo.Repository)
		groups := groupByAuthor(repo.Commits)
		slices.SortStableFunc(groups, func(a, b authorGroup) int {
			return collator.CompareString(a.author, b.author)
		})
		for _, group := range groups {
			fmt.Fprintf(&b, "- %s: %d개 커밋\n", group.author, len(group.commits))
		}
		b.WriteString("\n")
	}

	for _, repo := range repos {
		if len(repo.Commits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", repo.Repository)
		for _, group := range groupByAuthor(repo.Commits) {
			fmt.Fprintf(&b, "### %s (%d개 커밋)\n", group.author, len(group.commits))
			for _, commit := range group.commits {
				fmt.Fprintf(&b, "- %s\n", commit.Title)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Document renders the daily report as a parsed document.
func (d DailyBuilder) Document(date time.Time, repos []RepoCommits) Document {
	return ParseDocument(d.Build(date, repos))
}
