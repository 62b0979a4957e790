package report

import (
	"slices"
	"testing"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/commits"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		sections int
		preamble string
	}{
		{name: "empty", text: "", sections: 0},
		{name: "preamble only", text: "# title\n\nno sections\n", sections: 0, preamble: "# title\n\nno sections\n"},
		{name: "two sections", text: "# t\n\n## a\n- x\n\n## b\n- y\n", sections: 2, preamble: "# t\n\n"},
		{name: "deeper headings stay in body", text: "## a\n### sub\n#### deeper\n- z\n", sections: 1},
		{name: "no trailing newline", text: "## a\nbody", sections: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			doc := ParseDocument(tc.text)
			if len(doc.Sections) != tc.sections {
				t.Fatalf("len(Sections) = %d, want %d", len(doc.Sections), tc.sections)
			}
			if doc.Preamble != tc.preamble {
				t.Fatalf("Preamble = %q, want %q", doc.Preamble, tc.preamble)
			}
			if got := doc.String(); got != tc.text {
				t.Fatalf("String() = %q, want %q", got, tc.text)
			}
		})
	}
}

func TestParseDocumentSectionBodies(t *testing.T) {
	t.Parallel()

	doc := ParseDocument("# t\n\n## /grp/E201\n### Alice (2개 커밋)\n- fix bug\n\n## E202\n- other\n")
	if len(doc.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(doc.Sections))
	}
	first := doc.Sections[0]
	if first.Heading != "## /grp/E201" || first.Title() != "/grp/E201" {
		t.Fatalf("first heading = %q (%q), want ## /grp/E201", first.Heading, first.Title())
	}
	if first.Body != "### Alice (2개 커밋)\n- fix bug\n" {
		t.Fatalf("first body = %q", first.Body)
	}

	section, ok := doc.Find(func(heading string) bool { return heading == "## E202" })
	if !ok || section.Body != "- other\n" {
		t.Fatalf("Find(E202) = %+v, %v", section, ok)
	}
	if _, ok := doc.Find(func(string) bool { return false }); ok {
		t.Fatal("Find() matched with a rejecting predicate")
	}
}

func TestParseDocumentTrailingHeading(t *testing.T) {
	t.Parallel()

	doc := ParseDocument("## only")
	if got, want := doc.String(), "## only\n"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestNewTeamSummaryOrdersByCount(t *testing.T) {
	t.Parallel()

	reports := []commits.MemberReport{
		{Member: commits.Member{ID: "a"}, Count: 1},
		{Member: commits.Member{ID: "b"}, Count: 3},
		{Member: commits.Member{ID: "c"}, Count: 1},
		{Member: commits.Member{ID: "d"}, Count: 0},
	}
	summary := NewTeamSummary(Team{ID: "E201"}, reports)

	var order []string
	for _, report := range summary.MemberReports {
		order = append(order, report.Member.ID)
	}
	if got, want := order, []string{"b", "a", "c", "d"}; !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if summary.TotalCommitCount != 5 || !summary.HasCommits() {
		t.Fatalf("total = %d, HasCommits() = %v, want 5 true", summary.TotalCommitCount, summary.HasCommits())
	}
	if reports[0].Member.ID != "a" {
		t.Fatal("NewTeamSummary() reordered its input")
	}
	if NewTeamSummary(Team{}, nil).HasCommits() {
		t.Fatal("HasCommits() = true for empty summary")
	}
}

func TestTeamBuilderBuild(t *testing.T) {
	t.Parallel()

	team := Team{ID: "E201", RepositoryPath: "/s12-final/S12P31E201"}
	summary := NewTeamSummary(team, []commits.MemberReport{
		{Member: commits.Member{ID: "@jdoe"}, Count: 0},
		{
			Member: commits.Member{ID: "@kim", DisplayName: "김철수"},
			Count:  2,
			Commits: []commits.Commit{
				{Title: "feat: login"},
				{Title: "fix: typo"},
			},
		},
	})

	got := TeamBuilder{}.Build(summary, day(2025, 5, 1), day(2025, 5, 14))
	want := "# 2025-05-01 ~ 2025-05-14 커밋 내역\n\n" +
		"## /s12-final/S12P31E201\n\n" +
		"### 팀원별 커밋 수 요약\n\n" +
		"- 팀 전체 커밋 수: 2개\n" +
		"- 팀원별 커밋 수:\n" +
		"  - 김철수 (@kim): 2개\n" +
		"  - @jdoe (@jdoe): 0개\n" +
		"\n" +
		"### 상세 커밋 내역\n\n" +
		"#### 김철수 (@kim) - 2개\n" +
		"- feat: login\n" +
		"- fix: typo\n" +
		"\n"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}

	doc := TeamBuilder{}.Document(summary, day(2025, 5, 1), day(2025, 5, 14))
	if len(doc.Sections) != 1 || doc.Sections[0].Title() != team.RepositoryPath {
		t.Fatalf("Document() sections = %+v", doc.Sections)
	}
}

func TestDailyBuilderBuild(t *testing.T) {
	t.Parallel()

	repos := []RepoCommits{
		{
			Repository: "/s12-final/S12P31E201",
			Commits: []commits.Commit{
				{Title: "a1", Author: "이영희"},
				{Title: "b1", Author: "김철수"},
				{Title: "a2", Author: "이영희"},
				{Title: "c1", Author: "박민수"},
			},
		},
		{Repository: "/s12-final/S12P31E202"},
	}

	got := DailyBuilder{}.Build(day(2025, 5, 2), repos)
	want := "# 2025-05-02 커밋 내역\n\n" +
		"## 팀별 개발자 커밋 수\n" +
		"### /s12-final/S12P31E201\n" +
		"- 김철수: 1개 커밋\n" +
		"- 박민수: 1개 커밋\n" +
		"- 이영희: 2개 커밋\n" +
		"\n" +
		"## /s12-final/S12P31E201\n" +
		"### 이영희 (2개 커밋)\n" +
		"- a1\n" +
		"- a2\n" +
		"\n" +
		"### 김철수 (1개 커밋)\n" +
		"- b1\n" +
		"\n" +
		"### 박민수 (1개 커밋)\n" +
		"- c1\n" +
		"\n"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}

	doc := DailyBuilder{}.Document(day(2025, 5, 2), repos)
	if len(doc.Sections) != 2 || doc.Sections[0].Heading != DeveloperSummaryHeading {
		t.Fatalf("Document() sections = %+v", doc.Sections)
	}
}

func TestDailyBuilderWithoutCommits(t *testing.T) {
	t.Parallel()

	got := DailyBuilder{}.Build(day(2025, 5, 2), nil)
	if want := "# 2025-05-02 커밋 내역\n\n## 팀별 개발자 커밋 수\n"; got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
}

func TestRepoSummaryBuilderBuild(t *testing.T) {
	t.Parallel()

	repos := []RepoCommits{
		{
			Repository: "/grp/api",
			Commits: []commits.Commit{
				{Title: "init", Author: "kim", CreatedAt: time.Date(2025, 5, 1, 15, 4, 5, 0, time.UTC)},
				{Title: "docs", Author: "lee", CreatedAt: time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)},
			},
		},
		{Repository: "/grp/empty"},
	}

	got := RepoSummaryBuilder{Location: time.UTC}.Build(day(2025, 4, 18), day(2025, 5, 2), repos)
	want := "# 2025-04-18 ~ 2025-05-02 커밋 내역\n\n" +
		"## /grp/api\n\n" +
		"### kim\n" +
		"- init (2025. 5. 1. 오후 3:04:05)\n" +
		"\n" +
		"### lee\n" +
		"- docs (2025. 5. 2. 오전 9:00:00)\n" +
		"\n"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
}

func TestFormatLocalTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		at   time.Time
		want string
	}{
		{at: time.Date(2025, 5, 1, 15, 4, 5, 0, time.UTC), want: "2025. 5. 1. 오후 3:04:05"},
		{at: time.Date(2025, 12, 31, 0, 30, 0, 0, time.UTC), want: "2025. 12. 31. 오전 12:30:00"},
		{at: time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC), want: "2025. 1. 9. 오후 12:00:00"},
	}
	for _, tc := range tests {
		if got := FormatLocalTime(tc.at); got != tc.want {
			t.Fatalf("FormatLocalTime(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestIssuesBuilderBuild(t *testing.T) {
	t.Parallel()

	projects := []ProjectIssues{
		{Key: "S12P31E201", Issues: []Issue{{Key: "S12P31E201-1", Summary: "로그인 구현"}, {Key: "S12P31E201-2", Summary: "배포"}}},
		{Key: "S12P31E202"},
	}
	got := IssuesBuilder{}.Build(day(2025, 5, 2), projects)
	want := "# 2025-05-02 Jira 이슈 내역\n\n" +
		"## S12P31E201\n" +
		"- 로그인 구현\n" +
		"- 배포\n" +
		"\n"
	if got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}

	doc := IssuesBuilder{}.Document(day(2025, 5, 2), projects)
	if len(doc.Sections) != 1 || doc.Sections[0].Body != "- 로그인 구현\n- 배포\n\n" {
		t.Fatalf("Document() sections = %+v", doc.Sections)
	}
}
