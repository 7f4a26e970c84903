package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StargazerList is the enumeration stage output and checkpoint
type StargazerList struct {
	Cursor      string   `json:"cursor"`
	HasNextPage bool     `json:"hasNextPage"`
	Stargazers  []string `json:"stargazers"`
}

// UnmarshalJSON accepts both the checkpoint object and a bare array of logins
func (l *StargazerList) UnmarshalJSON(data []byte) error {
	var logins []string
	if err := json.Unmarshal(data, &logins); err == nil {
		*l = StargazerList{Stargazers: logins}
		return nil
	}

	type plain StargazerList
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("stargazer list must be an array of logins or an object: %w", err)
	}
	*l = StargazerList(p)
	return nil
}

// Validate checks that every login is non-empty and unique
func (l *StargazerList) Validate() error {
	seen := make(map[string]struct{}, len(l.Stargazers))
	for i, login := range l.Stargazers {
		if login == "" {
			return fmt.Errorf("stargazer %d has an empty login", i)
		}
		if _, ok := seen[login]; ok {
			return fmt.Errorf("duplicate stargazer login %q", login)
		}
		seen[login] = struct{}{}
	}
	return nil
}

// Complete reports whether enumeration reached the last page
func (l *StargazerList) Complete() bool {
	return !l.HasNextPage
}

// ErrEmptyStargazerList is returned when there is nothing to collect
var ErrEmptyStargazerList = errors.New("stargazer list is empty")
