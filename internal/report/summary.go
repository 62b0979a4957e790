package report

import (
	"fmt"
	"strings"
	"time"
)

// RepoSummaryBuilder renders the per-repository window summary grouped by
// author.
type RepoSummaryBuilder struct {
	// Location renders commit times; nil means time.Local.
	Location *time.Location
}

// Build renders repos for the window [start, end].
func (r RepoSummaryBuilder) Build(start, end time.Time, repos []RepoCommits) string {
	location := r.Location
	if location == nil {
		location = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s ~ %s 커밋 내역\n\n", start.Format(DateLayout), end.Format(DateLayout))
	for _, repo := range repos {
		if len(repo.Commits) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", repo.Repository)
		for _, group := range groupByAuthor(repo.Commits) {
			fmt.Fprintf(&b, "### %s\n", group.author)
			for _, commit := range group.commits {
				fmt.Fprintf(&b, "- %s (%s)\n", commit.Title, FormatLocalTime(commit.CreatedAt.In(location)))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatLocalTime renders t the way Korean locales print a timestamp, for
// example "2025. 5. 1. 오후 3:04:05".
func FormatLocalTime(t time.Time) string {
	meridiem := "오전"
	if t.Hour() >= 12 {
		meridiem = "오후"
	}
	return t.Format("2006. 1. 2. ") + meridiem + t.Format(" 3:04:05")
}
