package models

// StargazerInfo holds the activity counters of a single stargazer.
// Counters are nil when their sub-fetch was disabled or failed.
type StargazerInfo struct {
	Name                string `json:"name"`
	Stars               *int   `json:"stars,omitempty"`
	YearCommits         *int   `json:"yearCommits,omitempty"`
	TotalCommits        *int   `json:"totalCommits,omitempty"`
	PullRequests        *int   `json:"prs,omitempty"`
	Issues              *int   `json:"issues,omitempty"`
	Repositories        *int   `json:"repos,omitempty"`
	Reviews             *int   `json:"reviews,omitempty"`
	Followers           *int   `json:"followers,omitempty"`
	DiscussionsStarted  *int   `json:"discussionsStarted,omitempty"`
	DiscussionsAnswered *int   `json:"discussionsAnswered,omitempty"`
}

// NewStargazerInfo creates an empty record for a login
func NewStargazerInfo(login string) *StargazerInfo {
	return &StargazerInfo{Name: login}
}

// IsZero reports whether every collected counter is zero
func (s *StargazerInfo) IsZero() bool {
	for _, f := range Fields {
		if v, ok := f.Value(s); ok && v != 0 {
			return false
		}
	}
	return true
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}

// InfoCheckpoint is the collection stage output and checkpoint
type InfoCheckpoint struct {
	LastStargazer string          `json:"lastStargazer"`
	Finished      bool            `json:"finished"`
	Info          []StargazerInfo `json:"info"`
}

// NewInfoCheckpoint creates an empty, unfinished checkpoint
func NewInfoCheckpoint() *InfoCheckpoint {
	return &InfoCheckpoint{Info: make([]StargazerInfo, 0)}
}

// Logins returns the set of logins already present in the checkpoint
func (c *InfoCheckpoint) Logins() map[string]struct{} {
	logins := make(map[string]struct{}, len(c.Info))
	for _, info := range c.Info {
		logins[info.Name] = struct{}{}
	}
	return logins
}
