package repositories

import (
	"github.com/rickstaa/get-stargazers-info/internal/models"
)

// StargazerListRepository persists the enumeration output
type StargazerListRepository struct {
	path string
}

// NewStargazerListRepository creates a new StargazerListRepository
func NewStargazerListRepository(path string) *StargazerListRepository {
	return &StargazerListRepository{path: path}
}

// Path returns the backing file path
func (r *StargazerListRepository) Path() string {
	return r.path
}

// Load reads the stargazer list; a bare JSON array is accepted as a complete list
func (r *StargazerListRepository) Load() (*models.StargazerList, error) {
	list := &models.StargazerList{}
	if err := readJSON(r.path, list); err != nil {
		return nil, err
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}

// Save overwrites the stargazer list
func (r *StargazerListRepository) Save(list *models.StargazerList) error {
	if list.Stargazers == nil {
		list.Stargazers = []string{}
	}
	return writeJSON(r.path, list)
}
