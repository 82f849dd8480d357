package redmine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MockServer provides a fake Redmine API for testing
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	issues   map[int]*Issue    // issue id -> issue
	projects map[string][]int  // project identifier -> issue ids
	failWith map[string]int    // URL path -> forced status code
	requests atomic.Int64      // total requests served
	inFlight atomic.Int64      // currently executing requests
	maxSeen  atomic.Int64      // high-water mark of inFlight
}

// NewMockServer creates a mock Redmine API server
func NewMockServer() *MockServer {
	m := &MockServer{
		issues:   make(map[int]*Issue),
		projects: make(map[string][]int),
		failWith: make(map[string]int),
	}

	mux := http.NewServeMux()

	// Single issue: GET /issues/{id}.json
	// Project listing: GET /issues.json
	mux.HandleFunc("/issues.json", m.track(m.handleListIssues))
	mux.HandleFunc("/issues/", m.track(func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/issues/"), ".json")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			http.Error(w, "invalid issue id", http.StatusBadRequest)
			return
		}
		m.handleGetIssue(w, r, id)
	}))

	m.Server = httptest.NewServer(mux)
	return m
}

// track counts requests and applies any forced failure for the path.
func (m *MockServer) track(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		n := m.inFlight.Add(1)
		defer m.inFlight.Add(-1)
		for {
			seen := m.maxSeen.Load()
			if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
				break
			}
		}

		m.mu.RLock()
		status := m.failWith[r.URL.Path]
		m.mu.RUnlock()
		if status != 0 {
			http.Error(w, "forced failure", status)
			return
		}

		h(w, r)
	}
}

// AddIssue adds an issue to the mock server under a project identifier.
func (m *MockServer) AddIssue(project string, issue *Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issue.ID] = issue
	m.projects[project] = append(m.projects[project], issue.ID)
}

// FailPath forces every request for path to fail with the given status.
// A status of 0 clears the failure.
func (m *MockServer) FailPath(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.failWith, path)
		return
	}
	m.failWith[path] = status
}

// RequestCount returns the number of requests served so far.
func (m *MockServer) RequestCount() int64 {
	return m.requests.Load()
}

// MaxInFlight returns the highest number of simultaneous requests observed.
func (m *MockServer) MaxInFlight() int64 {
	return m.maxSeen.Load()
}

// Reset clears all issues and forced failures.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues = make(map[int]*Issue)
	m.projects = make(map[string][]int)
	m.failWith = make(map[string]int)
}

func (m *MockServer) handleGetIssue(w http.ResponseWriter, r *http.Request, id int) {
	m.mu.RLock()
	issue, ok := m.issues[id]
	m.mu.RUnlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Strip sub-resources not asked for, the way the real API does.
	include := r.URL.Query().Get("include")
	out := *issue
	if !strings.Contains(include, "journals") {
		out.Journals = nil
	}
	if !strings.Contains(include, "relations") {
		out.Relations = nil
	}
	if !strings.Contains(include, "attachments") {
		out.Attachments = nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"issue": out})
}

func (m *MockServer) handleListIssues(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project_id")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}

	m.mu.RLock()
	ids := append([]int(nil), m.projects[project]...)
	sort.Ints(ids)
	all := make([]Issue, 0, len(ids))
	for _, id := range ids {
		issue := *m.issues[id]
		// Listings never carry sub-resources.
		issue.Journals = nil
		issue.Relations = nil
		issue.Attachments = nil
		all = append(all, issue)
	}
	m.mu.RUnlock()

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(issuesPage{
		Issues:     all[offset:end],
		TotalCount: total,
		Offset:     offset,
		Limit:      limit,
	})
}
