package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mattdef/miniclaw-sub000/internal/errs"
	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// fileStore persists the scheduler's job map to a single jobs.json file
// using the same write-temp/rename protocol as the session store, so
// scheduled jobs survive a restart alongside sessions.
type fileStore struct {
	path string
}

func newFileStore(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.IO(dir, err)
	}
	return &fileStore{path: filepath.Join(dir, "jobs.json")}, nil
}

// Load reads the persisted job set. A missing file is not an error: it
// just means no jobs have ever been scheduled.
func (f *fileStore) Load() ([]*models.Job, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.IO(f.path, err)
	}
	var jobs []*models.Job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, errs.Serialization("decode jobs.json: " + err.Error())
	}
	return jobs, nil
}

// Save writes jobs atomically: serialize, write to a sibling .tmp file,
// then rename over the final path.
func (f *fileStore) Save(jobs []*models.Job) error {
	raw, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return errs.Serialization("encode jobs.json: " + err.Error())
	}
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		os.Remove(tmpPath)
		return errs.IO(tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return errs.IO(f.path, err)
	}
	return nil
}
