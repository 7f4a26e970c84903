package repositories

import (
	"fmt"

	"github.com/rickstaa/get-stargazers-info/internal/models"
)

// InfoCheckpointRepository persists the collection output
type InfoCheckpointRepository struct {
	path string
}

// NewInfoCheckpointRepository creates a new InfoCheckpointRepository
func NewInfoCheckpointRepository(path string) *InfoCheckpointRepository {
	return &InfoCheckpointRepository{path: path}
}

// Path returns the backing file path
func (r *InfoCheckpointRepository) Path() string {
	return r.path
}

// Load reads the checkpoint
func (r *InfoCheckpointRepository) Load() (*models.InfoCheckpoint, error) {
	checkpoint := models.NewInfoCheckpoint()
	if err := readJSON(r.path, checkpoint); err != nil {
		return nil, err
	}
	if checkpoint.Info == nil {
		checkpoint.Info = make([]models.StargazerInfo, 0)
	}

	seen := make(map[string]struct{}, len(checkpoint.Info))
	for _, info := range checkpoint.Info {
		if _, ok := seen[info.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate record for %q", r.path, info.Name)
		}
		seen[info.Name] = struct{}{}
	}
	return checkpoint, nil
}

// Save overwrites the checkpoint
func (r *InfoCheckpointRepository) Save(checkpoint *models.InfoCheckpoint) error {
	return writeJSON(r.path, checkpoint)
}
