package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGitHub is a minimal stand-in for the REST and GraphQL endpoints used by the pipeline
type fakeGitHub struct {
	t      *testing.T
	server *httptest.Server

	mu             sync.Mutex
	stargazers     []string
	users          map[string]map[string]interface{}
	commits        map[string]int
	restLimitOnce  bool
	graphLimitOnce bool
	requests       map[string]int
	authHeaders    []string
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	f := &fakeGitHub{
		t:        t,
		users:    make(map[string]map[string]interface{}),
		commits:  make(map[string]int),
		requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello/stargazers", f.handleStargazers)
	mux.HandleFunc("/graphql", f.handleGraphQL)
	mux.HandleFunc("/search/commits", f.handleSearchCommits)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// client returns a GitHubClient pointed at the fake that never really sleeps
func (f *fakeGitHub) client() *GitHubClient {
	throttle := NewThrottle(1, time.Minute, time.Hour)
	throttle.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	c, err := NewGitHubClient("test-token", f.server.URL, throttle)
	require.NoError(f.t, err)
	return c
}

func (f *fakeGitHub) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

func (f *fakeGitHub) record(key string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[key]++
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

func (f *fakeGitHub) handleStargazers(w http.ResponseWriter, r *http.Request) {
	f.record("stargazers", r)

	f.mu.Lock()
	limited := f.restLimitOnce
	f.restLimitOnce = false
	f.mu.Unlock()

	if limited {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page == 0 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage == 0 {
		perPage = 30
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(f.stargazers) {
		start = len(f.stargazers)
	}
	if end > len(f.stargazers) {
		end = len(f.stargazers)
	}

	if end < len(f.stargazers) {
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/hello/stargazers?page=%d&per_page=%d>; rel="next"`,
			f.server.URL, page+1, perPage))
	}

	body := make([]map[string]interface{}, 0, end-start)
	for _, login := range f.stargazers[start:end] {
		body = append(body, map[string]interface{}{
			"starred_at": "2023-01-01T00:00:00Z",
			"user":       map[string]interface{}{"login": login},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (f *fakeGitHub) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	f.record("graphql", r)

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	limited := f.graphLimitOnce
	f.graphLimitOnce = false
	f.mu.Unlock()
	if limited {
		fmt.Fprint(w, `{"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded"}]}`)
		return
	}

	switch {
	case strings.Contains(req.Query, "stargazers(first: 100"):
		f.graphQLStargazers(w, req)
	case strings.Contains(req.Query, "user(login: $login)"):
		login, _ := req.Variables["login"].(string)
		user, ok := f.users[login]
		if !ok {
			fmt.Fprintf(w, `{"data":{"user":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a User with the login of '%s'."}]}`, login)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"user": user}})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeGitHub) graphQLStargazers(w http.ResponseWriter, req graphQLRequest) {
	if req.Variables["owner"] != "octo" || req.Variables["name"] != "hello" {
		fmt.Fprint(w, `{"data":{"repository":null}}`)
		return
	}

	// Cursors are the decimal offset of the next node
	start := 0
	if cursor, ok := req.Variables["cursor"].(string); ok {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + pageSize
	if end > len(f.stargazers) {
		end = len(f.stargazers)
	}

	nodes := make([]map[string]string, 0, end-start)
	for _, login := range f.stargazers[start:end] {
		nodes = append(nodes, map[string]string{"login": login})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"repository": map[string]interface{}{
				"stargazers": map[string]interface{}{
					"pageInfo": map[string]interface{}{
						"hasNextPage": end < len(f.stargazers),
						"endCursor":   strconv.Itoa(end),
					},
					"nodes": nodes,
				},
			},
		},
	})
}

func (f *fakeGitHub) handleSearchCommits(w http.ResponseWriter, r *http.Request) {
	f.record("search", r)

	login := strings.TrimPrefix(r.URL.Query().Get("q"), "author:")
	total, ok := f.commits[login]
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Validation Failed","errors":[{"resource":"Search","field":"q","code":"invalid"}]}`)
		return
	}
	fmt.Fprintf(w, `{"total_count":%d,"incomplete_results":false,"items":[]}`, total)
}

// userPayload builds a GraphQL user object with the given counters
func userPayload(repoStars []int, yearCommits, reviews, prs, openIssues, closedIssues, followers, started, answered int) map[string]interface{} {
	nodes := make([]map[string]interface{}, 0, len(repoStars))
	for _, stars := range repoStars {
		nodes = append(nodes, map[string]interface{}{"stargazers": map[string]int{"totalCount": stars}})
	}
	return map[string]interface{}{
		"repositories": map[string]interface{}{"totalCount": len(repoStars), "nodes": nodes},
		"contributionsCollection": map[string]int{
			"totalCommitContributions":            yearCommits,
			"totalPullRequestReviewContributions": reviews,
		},
		"pullRequests":                 map[string]int{"totalCount": prs},
		"openIssues":                   map[string]int{"totalCount": openIssues},
		"closedIssues":                 map[string]int{"totalCount": closedIssues},
		"followers":                    map[string]int{"totalCount": followers},
		"repositoryDiscussions":        map[string]int{"totalCount": started},
		"repositoryDiscussionComments": map[string]int{"totalCount": answered},
	}
}
