package gitlabapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/commits"
	"github.com/Bada35/Write-With-Jira/internal/upstream"
	"github.com/go-chi/chi/v5"
)

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode payload: %v", err)
	}
}

func newTestClient(t *testing.T, router chi.Router) *DataClient {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	requestClient := upstream.NewClient("gitlab", server.Client(), upstream.RetryConfig{MaxAttempts: 1}, upstream.RateLimitPolicy{}, nil)
	client, err := NewDataClient(server.URL+"/api/v4", requestClient)
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}
	return client
}

func TestResolveProject(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Get("/api/v4/projects/{path}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "path") {
		case "s12-final%2FS12P31E201":
			writeJSON(t, w, map[string]any{"id": 1207, "path_with_namespace": "s12-final/S12P31E201"})
		default:
			http.Error(w, `{"message":"404 Project Not Found"}`, http.StatusNotFound)
		}
	})
	client := newTestClient(t, router)

	project, err := client.ResolveProject(context.Background(), "/s12-final/S12P31E201")
	if err != nil {
		t.Fatalf("ResolveProject() unexpected error: %v", err)
	}
	if project.ID != 1207 {
		t.Fatalf("ResolveProject().ID = %d, want 1207", project.ID)
	}

	_, err = client.ResolveProject(context.Background(), "/s12-final/missing")
	if got := upstream.StatusCode(err); got != http.StatusNotFound {
		t.Fatalf("StatusCode(err) = %d, want 404 (err=%v)", got, err)
	}

	if _, err := client.ResolveProject(context.Background(), "  "); err == nil {
		t.Fatalf("ResolveProject() expected error for empty path")
	}
}

func TestListBranchesPaginates(t *testing.T) {
	t.Parallel()

	var (
		mu          sync.Mutex
		pagesServed []string
	)
	router := chi.NewRouter()
	router.Get("/api/v4/projects/{id}/repository/branches", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		mu.Lock()
		pagesServed = append(pagesServed, page)
		mu.Unlock()
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("per_page = %q, want 100", r.URL.Query().Get("per_page"))
		}
		var payload []map[string]string
		switch page {
		case "1":
			for i := range 100 {
				payload = append(payload, map[string]string{"name": "b" + strconv.Itoa(i)})
			}
		case "2":
			payload = []map[string]string{{"name": "main"}}
		}
		writeJSON(t, w, payload)
	})
	client := newTestClient(t, router)

	branches, err := client.ListBranches(context.Background(), "42")
	if err != nil {
		t.Fatalf("ListBranches() unexpected error: %v", err)
	}
	if len(branches) != 101 || branches[100] != "main" {
		t.Fatalf("ListBranches() returned %d branches, last %q", len(branches), branches[len(branches)-1])
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(pagesServed, []string{"1", "2"}) {
		t.Fatalf("pages served = %v, want [1 2]", pagesServed)
	}
}

func TestListCommitsPageQuery(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 5, 1, 23, 59, 59, 0, time.UTC)

	testCases := []struct {
		name      string
		query     CommitQuery
		wantQuery map[string]string
		absent    []string
	}{
		{
			name:  "branch_scan",
			query: CommitQuery{Since: since, RefName: "feature/x"},
			wantQuery: map[string]string{
				"since":    "2025-05-01T00:00:00Z",
				"ref_name": "feature/x",
				"page":     "3",
				"per_page": "100",
			},
			absent: []string{"until", "all"},
		},
		{
			name:  "whole_project_day",
			query: CommitQuery{Since: since, Until: until, All: true, RefName: "ignored"},
			wantQuery: map[string]string{
				"since":    "2025-05-01T00:00:00Z",
				"until":    "2025-05-01T23:59:59Z",
				"all":      "true",
				"page":     "3",
				"per_page": "100",
			},
			absent: []string{"ref_name"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			router.Get("/api/v4/projects/{id}/repository/commits", func(w http.ResponseWriter, r *http.Request) {
				query := r.URL.Query()
				for key, want := range tc.wantQuery {
					if got := query.Get(key); got != want {
						t.Errorf("query %s = %q, want %q", key, got, want)
					}
				}
				for _, key := range tc.absent {
					if query.Has(key) {
						t.Errorf("query %s present, want absent", key)
					}
				}
				writeJSON(t, w, []map[string]any{{
					"id":           "abc",
					"title":        "fix bug",
					"author_name":  "Alice",
					"author_email": "alice@example.com",
					"created_at":   "2025-05-01T10:00:00.000+09:00",
					"web_url":      "https://gitlab.example.com/grp/repo/-/commit/abc",
				}})
			})
			client := newTestClient(t, router)

			page, err := client.ListCommitsPage(context.Background(), "42", tc.query, 3, 100)
			if err != nil {
				t.Fatalf("ListCommitsPage() unexpected error: %v", err)
			}
			if len(page) != 1 || page[0].Title != "fix bug" {
				t.Fatalf("ListCommitsPage() = %+v, want one commit titled fix bug", page)
			}
			if !page[0].CreatedAt.Equal(time.Date(2025, 5, 1, 1, 0, 0, 0, time.UTC)) {
				t.Fatalf("CreatedAt = %v, want 2025-05-01T01:00:00Z", page[0].CreatedAt)
			}
		})
	}
}

func TestListCommitsPageRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	client, err := NewDataClient("https://gitlab.example.com/api/v4/", upstream.NewClient("gitlab", nil, upstream.RetryConfig{}, upstream.RateLimitPolicy{}, nil))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}
	now := time.Now()
	if _, err := client.ListCommitsPage(context.Background(), "42", CommitQuery{Since: now, Until: now.Add(-time.Hour)}, 1, 100); err == nil {
		t.Fatalf("ListCommitsPage() expected error for inverted window")
	}
}

func TestSourceDetailEndpoints(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Get("/api/v4/projects/{id}/repository/commits/{sha}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": chi.URLParam(r, "sha"), "title": "add parser", "message": "add parser\n\nbody"})
	})
	router.Get("/api/v4/projects/{id}/repository/commits/{sha}/diff", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []map[string]any{{"new_path": "main.go", "old_path": "main.go", "diff": "+x\n"}})
	})
	router.Get("/api/v4/projects/{id}/repository/commits/{sha}/refs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "branch" {
			t.Errorf("refs type = %q, want branch", r.URL.Query().Get("type"))
		}
		writeJSON(t, w, []map[string]string{{"type": "branch", "name": "main"}, {"type": "branch", "name": "develop"}})
	})
	router.Get("/api/v4/users", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("username") {
		case "alice":
			writeJSON(t, w, []map[string]any{{"id": 7, "username": "alice", "name": "김앨리스"}})
		default:
			writeJSON(t, w, []map[string]any{})
		}
	})
	source := NewSource(newTestClient(t, router))

	commit, err := source.GetCommit(context.Background(), "42", "abc")
	if err != nil || commit.ID != "abc" || commit.Message != "add parser\n\nbody" {
		t.Fatalf("GetCommit() = %+v, %v", commit, err)
	}
	diff, err := source.CommitDiff(context.Background(), "42", "abc")
	if err != nil || len(diff) != 1 || diff[0] != (commits.FileDiff{OldPath: "main.go", NewPath: "main.go", Diff: "+x\n"}) {
		t.Fatalf("CommitDiff() = %+v, %v", diff, err)
	}
	refs, err := source.CommitRefs(context.Background(), "42", "abc")
	if err != nil || !slices.Equal(refs, []string{"main", "develop"}) {
		t.Fatalf("CommitRefs() = %v, %v", refs, err)
	}

	name, ok, err := source.LookupDisplayName(context.Background(), "@alice")
	if err != nil || !ok || name != "김앨리스" {
		t.Fatalf("LookupDisplayName(@alice) = %q, %t, %v", name, ok, err)
	}
	if _, ok, err := source.LookupDisplayName(context.Background(), "nobody"); err != nil || ok {
		t.Fatalf("LookupDisplayName(nobody) ok = %t, err = %v, want false, nil", ok, err)
	}
}

func TestSourceListCommitsMapsFields(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Get("/api/v4/projects/{id}/repository/commits", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []map[string]any{{
			"id":           "abc",
			"title":        "fix bug",
			"author_name":  "Alice",
			"author_email": "alice@example.com",
			"web_url":      "https://gitlab.example.com/c/abc",
		}})
	})
	source := NewSource(newTestClient(t, router))

	raws, err := source.ListCommits(context.Background(), "42", commits.Query{Ref: "main"}, 1, 100)
	if err != nil {
		t.Fatalf("ListCommits() unexpected error: %v", err)
	}
	want := commits.RawCommit{
		ID:          "abc",
		Title:       "fix bug",
		AuthorName:  "Alice",
		AuthorEmail: "alice@example.com",
		WebURL:      "https://gitlab.example.com/c/abc",
	}
	if len(raws) != 1 || !reflect.DeepEqual(raws[0], want) {
		t.Fatalf("ListCommits() = %+v, want %+v", raws, want)
	}
}

func TestNewTokenHTTPClient(t *testing.T) {
	t.Parallel()

	authHeaders := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client, err := NewTokenHTTPClient(TokenAuthConfig{Token: "glpat-secret", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewTokenHTTPClient() unexpected error: %v", err)
	}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	_ = resp.Body.Close()
	if gotAuth := <-authHeaders; gotAuth != "Bearer glpat-secret" {
		t.Fatalf("Authorization = %q, want Bearer glpat-secret", gotAuth)
	}

	if _, err := NewTokenHTTPClient(TokenAuthConfig{}); err == nil {
		t.Fatalf("NewTokenHTTPClient() expected error for empty token")
	}
}
