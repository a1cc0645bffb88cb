package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JobInfo holds one class/job template.
type JobInfo struct {
	JobID    uint8
	Abbrev   string
	Name     string
	ExpIndex int  // index into the session's level array, -1 = untracked
	DohDol   bool // crafter or gatherer discipline
	TrackExp bool // false for jobs that share another job's level row
}

// JobTable holds all class/jobs indexed by JobID.
type JobTable struct {
	jobs map[uint8]*JobInfo
}

// Get returns a job by ID, or nil if not found.
func (t *JobTable) Get(jobID uint8) *JobInfo {
	return t.jobs[jobID]
}

// All returns every loaded job.
func (t *JobTable) All() []*JobInfo {
	result := make([]*JobInfo, 0, len(t.jobs))
	for _, j := range t.jobs {
		result = append(result, j)
	}
	return result
}

// Count returns total loaded jobs.
func (t *JobTable) Count() int {
	return len(t.jobs)
}

type jobEntry struct {
	JobID    uint8  `yaml:"job_id"`
	Abbrev   string `yaml:"abbrev"`
	Name     string `yaml:"name"`
	ExpIndex int    `yaml:"exp_index"`
	DohDol   bool   `yaml:"doh_dol"`
	TrackExp *bool  `yaml:"track_exp"` // default true
}

type jobListFile struct {
	Jobs []jobEntry `yaml:"jobs"`
}

// LoadJobTable loads class/job definitions from YAML.
func LoadJobTable(path string) (*JobTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	var f jobListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse jobs: %w", err)
	}
	t := &JobTable{jobs: make(map[uint8]*JobInfo, len(f.Jobs))}
	for _, e := range f.Jobs {
		track := true
		if e.TrackExp != nil {
			track = *e.TrackExp
		}
		t.jobs[e.JobID] = &JobInfo{
			JobID:    e.JobID,
			Abbrev:   e.Abbrev,
			Name:     e.Name,
			ExpIndex: e.ExpIndex,
			DohDol:   e.DohDol,
			TrackExp: track,
		}
	}
	return t, nil
}
