package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

// MaxRESTPages is the deepest stargazer page the REST API serves
const MaxRESTPages = 400

// StargazerPage is one page of stargazer logins
type StargazerPage struct {
	Logins      []string
	NextCursor  string
	HasNextPage bool
}

// StargazerPager fetches the page identified by cursor; "" is the first page
type StargazerPager interface {
	NextPage(ctx context.Context, owner, repo, cursor string) (*StargazerPage, error)
}

// StargazerListStore persists the enumeration checkpoint
type StargazerListStore interface {
	Load() (*models.StargazerList, error)
	Save(list *models.StargazerList) error
}

// RESTStargazerPager walks the REST listing; cursors are page numbers
type RESTStargazerPager struct {
	client   *GitHubClient
	maxPages int
}

// NewRESTStargazerPager creates a pager bounded by MaxRESTPages
func NewRESTStargazerPager(client *GitHubClient) *RESTStargazerPager {
	return &RESTStargazerPager{client: client, maxPages: MaxRESTPages}
}

// NextPage implements StargazerPager
func (p *RESTStargazerPager) NextPage(ctx context.Context, owner, repo, cursor string) (*StargazerPage, error) {
	page := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid REST page cursor %q", cursor)
		}
		page = n
	}

	logins, next, err := p.client.ListStargazersPage(ctx, owner, repo, page)
	if err != nil {
		return nil, err
	}

	result := &StargazerPage{Logins: logins}
	if next != 0 {
		if next > p.maxPages {
			logger.WithFields(logrus.Fields{"page": page, "max_pages": p.maxPages}).
				Warn("REST pagination limit reached, remaining stargazers need GraphQL pagination")
			return result, nil
		}
		result.NextCursor = strconv.Itoa(next)
		result.HasNextPage = true
	}
	return result, nil
}

// GraphQLStargazerPager walks the GraphQL connection; cursors are endCursors
type GraphQLStargazerPager struct {
	client *GitHubClient
}

// NewGraphQLStargazerPager creates a new GraphQLStargazerPager
func NewGraphQLStargazerPager(client *GitHubClient) *GraphQLStargazerPager {
	return &GraphQLStargazerPager{client: client}
}

// NextPage implements StargazerPager
func (p *GraphQLStargazerPager) NextPage(ctx context.Context, owner, repo, cursor string) (*StargazerPage, error) {
	return p.client.StargazersAfter(ctx, owner, repo, cursor)
}

// StargazerService enumerates the stargazers of a repository
type StargazerService struct {
	pager         StargazerPager
	store         StargazerListStore
	saveFrequency int
	resume        bool
}

// NewStargazerService creates a new StargazerService. The list is
// checkpointed every saveFrequency newly seen logins.
func NewStargazerService(pager StargazerPager, store StargazerListStore, saveFrequency int, resume bool) *StargazerService {
	if saveFrequency <= 0 {
		saveFrequency = pageSize
	}
	return &StargazerService{
		pager:         pager,
		store:         store,
		saveFrequency: saveFrequency,
		resume:        resume,
	}
}

// Enumerate returns the complete, deduplicated and ordered stargazer list
func (s *StargazerService) Enumerate(ctx context.Context, owner, repo string) (*models.StargazerList, error) {
	log := logger.WithField("repository", owner+"/"+repo)

	list, err := s.start(log)
	if err != nil {
		return nil, err
	}
	if list.Complete() && len(list.Stargazers) > 0 {
		log.WithField("stargazers", len(list.Stargazers)).Info("Stargazer list already complete")
		return list, nil
	}

	seen := make(map[string]struct{}, len(list.Stargazers))
	for _, login := range list.Stargazers {
		seen[login] = struct{}{}
	}

	log.Info("Retrieving stargazers...")
	lastSaved := len(list.Stargazers)
	for {
		page, err := s.pager.NextPage(ctx, owner, repo, list.Cursor)
		if err != nil && ctx.Err() != nil {
			// The cursor still points at the page that was in flight
			return nil, s.interrupt(ctx.Err(), list, log)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch stargazers after cursor %q: %w", list.Cursor, err)
		}

		for _, login := range page.Logins {
			if _, ok := seen[login]; ok {
				continue
			}
			seen[login] = struct{}{}
			list.Stargazers = append(list.Stargazers, login)
		}

		if !page.HasNextPage {
			break
		}
		list.Cursor = page.NextCursor
		list.HasNextPage = true

		if len(list.Stargazers)/s.saveFrequency > lastSaved/s.saveFrequency {
			if err := s.store.Save(list); err != nil {
				return nil, fmt.Errorf("failed to save stargazer checkpoint: %w", err)
			}
			lastSaved = len(list.Stargazers)
			log.WithField("stargazers", lastSaved).Info("Stargazer checkpoint saved")
		}

		if err := ctx.Err(); err != nil {
			return nil, s.interrupt(err, list, log)
		}
	}

	list.Cursor = ""
	list.HasNextPage = false
	log.WithField("stargazers", len(list.Stargazers)).Info("Storing stargazers in a json file...")
	if err := s.store.Save(list); err != nil {
		return nil, fmt.Errorf("failed to save stargazer list: %w", err)
	}
	return list, nil
}

// interrupt saves the partial list and returns cause
func (s *StargazerService) interrupt(cause error, list *models.StargazerList, log *logrus.Entry) error {
	if err := s.store.Save(list); err != nil {
		log.WithError(err).Error("Failed to save stargazer checkpoint")
	}
	log.WithFields(logrus.Fields{"stargazers": len(list.Stargazers), "cursor": list.Cursor}).
		Warn("Enumeration interrupted, checkpoint saved")
	return cause
}

// start returns the list to continue from
func (s *StargazerService) start(log *logrus.Entry) (*models.StargazerList, error) {
	fresh := &models.StargazerList{Stargazers: make([]string, 0)}
	if !s.resume {
		return fresh, nil
	}

	list, err := s.store.Load()
	if errors.Is(err, repositories.ErrNotFound) {
		log.Info("No stargazer checkpoint found, starting from the first page")
		return fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load stargazer checkpoint: %w", err)
	}

	log.WithFields(logrus.Fields{"stargazers": len(list.Stargazers), "cursor": list.Cursor}).
		Info("Resuming stargazer enumeration")
	return list, nil
}
