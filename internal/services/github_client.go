package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// pageSize is the maximum page size both GitHub APIs accept
const pageSize = 100

// GitHubClient issues the REST and GraphQL calls of the pipeline. Every call
// goes through the throttle; GraphQL requests share the REST client so both
// use the same token and error handling.
type GitHubClient struct {
	client      *github.Client
	throttle    *Throttle
	graphQLPath string
}

// UserActivity holds the counters returned by the aggregate user query
type UserActivity struct {
	Stars               int
	Repositories        int
	YearCommits         int
	Reviews             int
	PullRequests        int
	Issues              int
	Followers           int
	DiscussionsStarted  int
	DiscussionsAnswered int
}

// GraphQLError is returned when the GraphQL API reports errors for a query
type GraphQLError struct {
	Errors []graphQLErrorItem
}

func (e *GraphQLError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		messages = append(messages, item.Message)
	}
	return "graphql: " + strings.Join(messages, "; ")
}

type graphQLErrorItem struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage    `json:"data"`
	Errors []graphQLErrorItem `json:"errors"`
}

// NewGitHubClient creates a client authenticated with a bearer token.
// baseURL may be empty to use the public GitHub API.
func NewGitHubClient(token, baseURL string, throttle *Throttle) (*GitHubClient, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}

	return &GitHubClient{
		client:      client,
		throttle:    throttle,
		graphQLPath: graphQLEndpoint(client.BaseURL),
	}, nil
}

// graphQLEndpoint resolves the GraphQL endpoint for a REST base URL.
// GitHub Enterprise serves REST under /api/v3/ and GraphQL at /api/graphql.
func graphQLEndpoint(base *url.URL) string {
	if !strings.HasSuffix(base.Path, "/api/v3/") {
		return "graphql"
	}
	u := *base
	u.Path = strings.TrimSuffix(base.Path, "v3/") + "graphql"
	return u.String()
}

// ListStargazersPage returns the logins on one REST stargazer page and the
// next page number (0 when this was the last page).
func (c *GitHubClient) ListStargazersPage(ctx context.Context, owner, repo string, page int) ([]string, int, error) {
	opts := &github.ListOptions{Page: page, PerPage: pageSize}

	var stargazers []*github.Stargazer
	var resp *github.Response
	op := fmt.Sprintf("GET /repos/%s/%s/stargazers?page=%d", owner, repo, page)
	err := c.throttle.Do(ctx, op, func() error {
		var err error
		stargazers, resp, err = c.client.Activity.ListStargazers(ctx, owner, repo, opts)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	logins := make([]string, 0, len(stargazers))
	for _, stargazer := range stargazers {
		if stargazer.User != nil {
			logins = append(logins, stargazer.User.GetLogin())
		}
	}
	return logins, resp.NextPage, nil
}

const stargazersQuery = `
query($owner: String!, $name: String!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    stargazers(first: 100, after: $cursor) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        login
      }
    }
  }
}`

// StargazersAfter returns the GraphQL stargazer page following cursor
func (c *GitHubClient) StargazersAfter(ctx context.Context, owner, repo, cursor string) (*StargazerPage, error) {
	var data struct {
		Repository *struct {
			Stargazers struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					Login string `json:"login"`
				} `json:"nodes"`
			} `json:"stargazers"`
		} `json:"repository"`
	}

	variables := map[string]interface{}{"owner": owner, "name": repo, "cursor": nil}
	if cursor != "" {
		variables["cursor"] = cursor
	}
	op := fmt.Sprintf("graphql stargazers %s/%s after %q", owner, repo, cursor)
	if err := c.graphQL(ctx, op, stargazersQuery, variables, &data); err != nil {
		return nil, err
	}
	if data.Repository == nil {
		return nil, fmt.Errorf("repository %s/%s not found", owner, repo)
	}

	page := &StargazerPage{
		Logins:      make([]string, 0, len(data.Repository.Stargazers.Nodes)),
		NextCursor:  data.Repository.Stargazers.PageInfo.EndCursor,
		HasNextPage: data.Repository.Stargazers.PageInfo.HasNextPage,
	}
	for _, node := range data.Repository.Stargazers.Nodes {
		page.Logins = append(page.Logins, node.Login)
	}
	return page, nil
}

const userActivityQuery = `
query($login: String!) {
  user(login: $login) {
    repositories(first: 100, ownerAffiliations: OWNER, orderBy: {direction: DESC, field: STARGAZERS}) {
      totalCount
      nodes {
        stargazers {
          totalCount
        }
      }
    }
    contributionsCollection {
      totalCommitContributions
      totalPullRequestReviewContributions
    }
    pullRequests(first: 1) {
      totalCount
    }
    openIssues: issues(states: OPEN) {
      totalCount
    }
    closedIssues: issues(states: CLOSED) {
      totalCount
    }
    followers {
      totalCount
    }
    repositoryDiscussions {
      totalCount
    }
    repositoryDiscussionComments(onlyAnswers: true) {
      totalCount
    }
  }
}`

type totalCount struct {
	TotalCount int `json:"totalCount"`
}

// UserActivity runs the aggregate activity query for one user. Stars are
// summed over the user's 100 most starred owned repositories.
func (c *GitHubClient) UserActivity(ctx context.Context, login string) (*UserActivity, error) {
	var data struct {
		User *struct {
			Repositories struct {
				TotalCount int `json:"totalCount"`
				Nodes      []struct {
					Stargazers totalCount `json:"stargazers"`
				} `json:"nodes"`
			} `json:"repositories"`
			ContributionsCollection struct {
				TotalCommitContributions            int `json:"totalCommitContributions"`
				TotalPullRequestReviewContributions int `json:"totalPullRequestReviewContributions"`
			} `json:"contributionsCollection"`
			PullRequests                 totalCount `json:"pullRequests"`
			OpenIssues                   totalCount `json:"openIssues"`
			ClosedIssues                 totalCount `json:"closedIssues"`
			Followers                    totalCount `json:"followers"`
			RepositoryDiscussions        totalCount `json:"repositoryDiscussions"`
			RepositoryDiscussionComments totalCount `json:"repositoryDiscussionComments"`
		} `json:"user"`
	}

	op := fmt.Sprintf("graphql user %s", login)
	if err := c.graphQL(ctx, op, userActivityQuery, map[string]interface{}{"login": login}, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, fmt.Errorf("user %q not found", login)
	}

	u := data.User
	activity := &UserActivity{
		Repositories:        u.Repositories.TotalCount,
		YearCommits:         u.ContributionsCollection.TotalCommitContributions,
		Reviews:             u.ContributionsCollection.TotalPullRequestReviewContributions,
		PullRequests:        u.PullRequests.TotalCount,
		Issues:              u.OpenIssues.TotalCount + u.ClosedIssues.TotalCount,
		Followers:           u.Followers.TotalCount,
		DiscussionsStarted:  u.RepositoryDiscussions.TotalCount,
		DiscussionsAnswered: u.RepositoryDiscussionComments.TotalCount,
	}
	for _, repo := range u.Repositories.Nodes {
		activity.Stars += repo.Stargazers.TotalCount
	}
	return activity, nil
}

// TotalCommits returns the number of commits authored by login across
// GitHub. Unknown users (HTTP 422) count as zero commits.
func (c *GitHubClient) TotalCommits(ctx context.Context, login string) (int, error) {
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 1}}

	var result *github.CommitsSearchResult
	err := c.throttle.Do(ctx, "GET /search/commits author:"+login, func() error {
		var err error
		result, _, err = c.client.Search.Commits(ctx, "author:"+login, opts)
		return err
	})
	if err != nil {
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil &&
			errResp.Response.StatusCode == http.StatusUnprocessableEntity {
			return 0, nil
		}
		return 0, err
	}
	return result.GetTotal(), nil
}

// graphQL posts a query and decodes its data into out
func (c *GitHubClient) graphQL(ctx context.Context, op, query string, variables map[string]interface{}, out interface{}) error {
	return c.throttle.Do(ctx, op, func() error {
		req, err := c.client.NewRequest(http.MethodPost, c.graphQLPath, &graphQLRequest{
			Query:     query,
			Variables: variables,
		})
		if err != nil {
			return err
		}

		var body graphQLResponse
		resp, err := c.client.Do(ctx, req, &body)
		if err != nil {
			return err
		}

		if len(body.Errors) > 0 {
			for _, item := range body.Errors {
				if item.Type == "RATE_LIMITED" {
					return &GraphQLRateLimitError{Message: item.Message, Reset: resp.Rate.Reset.Time}
				}
			}
			return &GraphQLError{Errors: body.Errors}
		}

		if len(body.Data) == 0 {
			return errors.New("graphql: empty response")
		}
		if err := json.Unmarshal(body.Data, out); err != nil {
			return fmt.Errorf("graphql: decode response: %w", err)
		}
		return nil
	})
}
