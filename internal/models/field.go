package models

// Field identifies one numeric counter of a StargazerInfo
type Field struct {
	Key   string
	Label string
	get   func(*StargazerInfo) *int
}

// Value returns the counter and whether it was collected
func (f Field) Value(s *StargazerInfo) (int, bool) {
	v := f.get(s)
	if v == nil {
		return 0, false
	}
	return *v, true
}

var (
	FieldStars               = Field{"stars", "stars", func(s *StargazerInfo) *int { return s.Stars }}
	FieldYearCommits         = Field{"yearCommits", "year commits", func(s *StargazerInfo) *int { return s.YearCommits }}
	FieldPullRequests        = Field{"prs", "PRs", func(s *StargazerInfo) *int { return s.PullRequests }}
	FieldIssues              = Field{"issues", "issues", func(s *StargazerInfo) *int { return s.Issues }}
	FieldRepositories        = Field{"repos", "repos", func(s *StargazerInfo) *int { return s.Repositories }}
	FieldReviews             = Field{"reviews", "reviews", func(s *StargazerInfo) *int { return s.Reviews }}
	FieldFollowers           = Field{"followers", "followers", func(s *StargazerInfo) *int { return s.Followers }}
	FieldDiscussionsAnswered = Field{"discussionsAnswered", "discussions answered", func(s *StargazerInfo) *int { return s.DiscussionsAnswered }}
	FieldDiscussionsStarted  = Field{"discussionsStarted", "discussions started", func(s *StargazerInfo) *int { return s.DiscussionsStarted }}
	FieldTotalCommits        = Field{"totalCommits", "total commits", func(s *StargazerInfo) *int { return s.TotalCommits }}
)

// Fields lists every tracked counter in report order
var Fields = []Field{
	FieldStars,
	FieldYearCommits,
	FieldPullRequests,
	FieldIssues,
	FieldRepositories,
	FieldReviews,
	FieldFollowers,
	FieldDiscussionsAnswered,
	FieldDiscussionsStarted,
	FieldTotalCommits,
}
