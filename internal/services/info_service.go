package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rickstaa/get-stargazers-info/internal/models"
	"github.com/rickstaa/get-stargazers-info/internal/repositories"
	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

// ErrCheckpointMismatch is returned when the checkpoint's last stargazer is
// not part of the stargazer list being collected.
var ErrCheckpointMismatch = errors.New("checkpoint does not match stargazer list")

// ActivityFetcher provides the per-user lookups of the collection stage
type ActivityFetcher interface {
	UserActivity(ctx context.Context, login string) (*UserActivity, error)
	TotalCommits(ctx context.Context, login string) (int, error)
}

// InfoCheckpointStore persists the collection checkpoint
type InfoCheckpointStore interface {
	Load() (*models.InfoCheckpoint, error)
	Save(checkpoint *models.InfoCheckpoint) error
}

// InfoOptions selects the sub-fetches and checkpoint behaviour of a run
type InfoOptions struct {
	GetInfo         bool
	GetTotalCommits bool
	Resume          bool
	LogFrequency    int
	SaveFrequency   int
}

// InfoService collects activity counters for every stargazer
type InfoService struct {
	fetcher ActivityFetcher
	store   InfoCheckpointStore
	opts    InfoOptions
}

// NewInfoService creates a new InfoService
func NewInfoService(fetcher ActivityFetcher, store InfoCheckpointStore, opts InfoOptions) *InfoService {
	if opts.LogFrequency <= 0 {
		opts.LogFrequency = pageSize
	}
	if opts.SaveFrequency <= 0 {
		opts.SaveFrequency = pageSize
	}
	return &InfoService{
		fetcher: fetcher,
		store:   store,
		opts:    opts,
	}
}

// Collect fetches the counters of each stargazer in order and returns the
// final checkpoint. A failing user is logged and skipped.
func (s *InfoService) Collect(ctx context.Context, stargazers []string) (*models.InfoCheckpoint, error) {
	log := logger.WithField("run_id", uuid.New().String())

	checkpoint, start, err := s.start(stargazers, log)
	if err != nil {
		return nil, err
	}
	if checkpoint.Finished {
		log.WithField("records", len(checkpoint.Info)).Info("Stargazer info already collected")
		return checkpoint, nil
	}

	done := checkpoint.Logins()
	failed := 0

	log.WithFields(logrus.Fields{"stargazers": len(stargazers), "start": start}).Info("Retrieving info of stargazers...")
	for i := start; i < len(stargazers); i++ {
		if err := ctx.Err(); err != nil {
			return nil, s.interrupt(err, checkpoint, log)
		}

		login := stargazers[i]
		if _, ok := done[login]; !ok {
			info, err := s.collectOne(ctx, login)
			if err != nil && ctx.Err() != nil {
				// Interrupted mid-request, the user is retried on resume
				return nil, s.interrupt(ctx.Err(), checkpoint, log)
			}
			if err != nil {
				failed++
				log.WithError(err).WithField("login", login).Warn("Failed to retrieve stargazer info, skipping")
			} else {
				checkpoint.Info = append(checkpoint.Info, *info)
				done[login] = struct{}{}
			}
		}
		checkpoint.LastStargazer = login

		processed := i + 1
		if processed%s.opts.LogFrequency == 0 {
			log.Infof("Info retrieved for '%d' stargazers.", processed)
		}
		if processed%s.opts.SaveFrequency == 0 && processed < len(stargazers) {
			if err := s.store.Save(checkpoint); err != nil {
				return nil, fmt.Errorf("failed to save info checkpoint: %w", err)
			}
		}
	}

	checkpoint.Finished = true
	log.WithFields(logrus.Fields{"records": len(checkpoint.Info), "failed": failed}).
		Info("Storing stargazers info in a json file...")
	if err := s.store.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save stargazer info: %w", err)
	}
	return checkpoint, nil
}

// interrupt saves the partial checkpoint and returns cause
func (s *InfoService) interrupt(cause error, checkpoint *models.InfoCheckpoint, log *logrus.Entry) error {
	if err := s.store.Save(checkpoint); err != nil {
		log.WithError(err).Error("Failed to save info checkpoint")
	}
	log.WithFields(logrus.Fields{"last_stargazer": checkpoint.LastStargazer, "records": len(checkpoint.Info)}).
		Warn("Collection interrupted, checkpoint saved")
	return cause
}

// start loads the checkpoint when resuming and returns the index of the
// first stargazer that still needs processing.
func (s *InfoService) start(stargazers []string, log *logrus.Entry) (*models.InfoCheckpoint, int, error) {
	if !s.opts.Resume {
		return models.NewInfoCheckpoint(), 0, nil
	}

	checkpoint, err := s.store.Load()
	if errors.Is(err, repositories.ErrNotFound) {
		log.Info("No info checkpoint found, starting from the first stargazer")
		return models.NewInfoCheckpoint(), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("could not load data from previous run: %w", err)
	}
	if checkpoint.Finished || checkpoint.LastStargazer == "" {
		return checkpoint, 0, nil
	}

	for i, login := range stargazers {
		if login == checkpoint.LastStargazer {
			log.WithFields(logrus.Fields{"last_stargazer": login, "records": len(checkpoint.Info)}).
				Info("Resuming stargazer info collection")
			return checkpoint, i + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: last stargazer %q not found", ErrCheckpointMismatch, checkpoint.LastStargazer)
}

// collectOne runs the enabled sub-fetches for a single login
func (s *InfoService) collectOne(ctx context.Context, login string) (*models.StargazerInfo, error) {
	info := models.NewStargazerInfo(login)

	if s.opts.GetInfo {
		activity, err := s.fetcher.UserActivity(ctx, login)
		if err != nil {
			return nil, err
		}
		info.Stars = models.Int(activity.Stars)
		info.YearCommits = models.Int(activity.YearCommits)
		info.PullRequests = models.Int(activity.PullRequests)
		info.Issues = models.Int(activity.Issues)
		info.Repositories = models.Int(activity.Repositories)
		info.Reviews = models.Int(activity.Reviews)
		info.Followers = models.Int(activity.Followers)
		info.DiscussionsStarted = models.Int(activity.DiscussionsStarted)
		info.DiscussionsAnswered = models.Int(activity.DiscussionsAnswered)
	}

	if s.opts.GetTotalCommits {
		total, err := s.fetcher.TotalCommits(ctx, login)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.WithError(err).WithField("login", login).Warn("Total commits could not be retrieved")
		} else {
			info.TotalCommits = models.Int(total)
		}
	}

	return info, nil
}
