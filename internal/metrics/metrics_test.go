package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder()
	recorder.UpstreamRequest("gitlab", "commits", 200)
	recorder.UpstreamRequest("gitlab", "commits", 204)
	recorder.UpstreamRequest("gitlab", "commits", 503)
	recorder.UpstreamRequest("jira", "search", 0)
	recorder.CommitsCollected("/grp/E201", 3)
	recorder.CommitsCollected("/grp/E201", 0)
	recorder.DuplicatesDropped("/grp/E201", 2)
	recorder.MergeCommitDropped("/grp/E201")
	recorder.AuthorLookup("hit")
	recorder.ReportWritten("daily")

	testCases := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "gitlab_2xx", got: testutil.ToFloat64(recorder.upstreamRequests.WithLabelValues("gitlab", "commits", "2xx")), want: 2},
		{name: "gitlab_5xx", got: testutil.ToFloat64(recorder.upstreamRequests.WithLabelValues("gitlab", "commits", "5xx")), want: 1},
		{name: "jira_transport_error", got: testutil.ToFloat64(recorder.upstreamRequests.WithLabelValues("jira", "search", "error")), want: 1},
		{name: "commits_collected", got: testutil.ToFloat64(recorder.commitsCollected.WithLabelValues("/grp/E201")), want: 3},
		{name: "duplicates_dropped", got: testutil.ToFloat64(recorder.duplicatesDropped.WithLabelValues("/grp/E201")), want: 2},
		{name: "merge_commits_dropped", got: testutil.ToFloat64(recorder.mergeCommitsDropped.WithLabelValues("/grp/E201")), want: 1},
		{name: "author_lookups", got: testutil.ToFloat64(recorder.authorLookups.WithLabelValues("hit")), want: 1},
		{name: "reports_written", got: testutil.ToFloat64(recorder.reportsWritten.WithLabelValues("daily")), want: 1},
	}

	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Fatalf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var recorder *Recorder
	recorder.UpstreamRequest("gitlab", "commits", 200)
	recorder.CommitsCollected("p", 1)
	recorder.DuplicatesDropped("p", 1)
	recorder.MergeCommitDropped("p")
	recorder.AuthorLookup("miss")
	recorder.ReportWritten("team")
	if err := recorder.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("WriteTextfile() unexpected error: %v", err)
	}
	if recorder.Gatherer() == nil {
		t.Fatalf("Gatherer() = nil, want empty registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder()
	recorder.ReportWritten("merge")

	path := filepath.Join(t.TempDir(), "write_with_jira.prom")
	if err := recorder.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `write_with_jira_reports_written_total{kind="merge"} 1`) {
		t.Fatalf("textfile = %q, missing reports_written sample", string(data))
	}

	if err := recorder.WriteTextfile(""); err != nil {
		t.Fatalf("WriteTextfile(\"\") unexpected error: %v", err)
	}
}
