package repositories

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rickstaa/get-stargazers-info/internal/models"
)

// StargazerInfoRepository handles database operations for exported stargazer records
type StargazerInfoRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStargazerInfoRepository creates a new StargazerInfoRepository
func NewStargazerInfoRepository(db *sql.DB) *StargazerInfoRepository {
	return &StargazerInfoRepository{db: db}
}

// UpsertBatch writes all records of one export in a single transaction
func (r *StargazerInfoRepository) UpsertBatch(repository, exportID string, infos []models.StargazerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stargazer_info (
			repository, login, export_id, stars, year_commits, total_commits, prs, issues,
			repos, reviews, followers, discussions_started, discussions_answered, exported_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, login) DO UPDATE SET
			export_id = excluded.export_id,
			stars = excluded.stars,
			year_commits = excluded.year_commits,
			total_commits = excluded.total_commits,
			prs = excluded.prs,
			issues = excluded.issues,
			repos = excluded.repos,
			reviews = excluded.reviews,
			followers = excluded.followers,
			discussions_started = excluded.discussions_started,
			discussions_answered = excluded.discussions_answered,
			exported_at = excluded.exported_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, info := range infos {
		_, err := stmt.Exec(
			repository, info.Name, exportID,
			info.Stars, info.YearCommits, info.TotalCommits, info.PullRequests, info.Issues,
			info.Repositories, info.Reviews, info.Followers, info.DiscussionsStarted, info.DiscussionsAnswered,
			now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByRepository retrieves all records of a repository ordered by login
func (r *StargazerInfoRepository) GetByRepository(repository string) ([]models.StargazerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT login, stars, year_commits, total_commits, prs, issues,
		       repos, reviews, followers, discussions_started, discussions_answered
		FROM stargazer_info
		WHERE repository = ?
		ORDER BY login ASC
	`

	rows, err := r.db.Query(query, repository)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []models.StargazerInfo
	for rows.Next() {
		var info models.StargazerInfo
		var stars, yearCommits, totalCommits, prs, issues, repos, reviews, followers, started, answered sql.NullInt64
		err := rows.Scan(
			&info.Name, &stars, &yearCommits, &totalCommits, &prs, &issues,
			&repos, &reviews, &followers, &started, &answered,
		)
		if err != nil {
			return nil, err
		}
		info.Stars = nullIntPtr(stars)
		info.YearCommits = nullIntPtr(yearCommits)
		info.TotalCommits = nullIntPtr(totalCommits)
		info.PullRequests = nullIntPtr(prs)
		info.Issues = nullIntPtr(issues)
		info.Repositories = nullIntPtr(repos)
		info.Reviews = nullIntPtr(reviews)
		info.Followers = nullIntPtr(followers)
		info.DiscussionsStarted = nullIntPtr(started)
		info.DiscussionsAnswered = nullIntPtr(answered)
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// CountByExportID returns how many rows an export wrote
func (r *StargazerInfoRepository) CountByExportID(exportID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM stargazer_info WHERE export_id = ?`, exportID).Scan(&count)
	return count, err
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.Int(int(v.Int64))
}
