package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "write_with_jira"

// Recorder collects per-run counters. A nil *Recorder discards everything,
// so components can take one unconditionally.
type Recorder struct {
	registry *prometheus.Registry

	upstreamRequests    *prometheus.CounterVec
	commitsCollected    *prometheus.CounterVec
	duplicatesDropped   *prometheus.CounterVec
	mergeCommitsDropped *prometheus.CounterVec
	authorLookups       *prometheus.CounterVec
	reportsWritten      *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by service, endpoint and HTTP status class.",
		}, []string{"service", "endpoint", "status"}),
		commitsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_collected_total",
			Help:      "Commits kept after filtering and deduplication.",
		}, []string{"project"}),
		duplicatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_duplicates_dropped_total",
			Help:      "Commits dropped because their URL was already seen on an earlier branch.",
		}, []string{"project"}),
		mergeCommitsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_commits_dropped_total",
			Help:      "Commits dropped by the merge-commit title policy.",
		}, []string{"project"}),
		authorLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "author_lookups_total",
			Help:      "Author display-name resolutions by result.",
		}, []string{"result"}),
		reportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_written_total",
			Help:      "Report files written by kind.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(
		r.upstreamRequests,
		r.commitsCollected,
		r.duplicatesDropped,
		r.mergeCommitsDropped,
		r.authorLookups,
		r.reportsWritten,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// UpstreamRequest counts one upstream call. A status of 0 means the request
// failed before a response arrived.
func (r *Recorder) UpstreamRequest(service, endpoint string, status int) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(service, endpoint, statusClass(status)).Inc()
}

// CommitsCollected adds kept commits for one project.
func (r *Recorder) CommitsCollected(project string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.commitsCollected.WithLabelValues(project).Add(float64(count))
}

// DuplicatesDropped adds cross-branch duplicates for one project.
func (r *Recorder) DuplicatesDropped(project string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.duplicatesDropped.WithLabelValues(project).Add(float64(count))
}

// MergeCommitDropped counts one suppressed merge commit.
func (r *Recorder) MergeCommitDropped(project string) {
	if r == nil {
		return
	}
	r.mergeCommitsDropped.WithLabelValues(project).Inc()
}

// AuthorLookup counts one resolution: hit, miss or fallback.
func (r *Recorder) AuthorLookup(result string) {
	if r == nil {
		return
	}
	r.authorLookups.WithLabelValues(result).Inc()
}

// ReportWritten counts one written report file.
func (r *Recorder) ReportWritten(kind string) {
	if r == nil {
		return
	}
	r.reportsWritten.WithLabelValues(kind).Inc()
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector. Empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
