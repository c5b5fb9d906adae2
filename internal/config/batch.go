package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BatchJob describes one video in a batch run.
type BatchJob struct {
	Video     string `json:"video"`
	Street    string `json:"street"`
	Direction string `json:"direction"`
	City      string `json:"city,omitempty"`
}

// BatchConfig is the on-disk batch list.
type BatchConfig struct {
	Jobs []BatchJob `json:"jobs"`
}

// LoadBatchConfig reads a batch list from a JSON file. Jobs without a city
// get defaultCity.
func LoadBatchConfig(path, defaultCity string) (*BatchConfig, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var cfg BatchConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse batch JSON: %w", err)
	}
	if len(cfg.Jobs) == 0 {
		return nil, errors.New("batch file contains no jobs")
	}

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		job.Video = strings.TrimSpace(job.Video)
		if job.Video == "" {
			return nil, fmt.Errorf("jobs[%d]: video path is required", i)
		}
		if job.Street == "" {
			return nil, fmt.Errorf("jobs[%d]: street is required", i)
		}
		if job.City == "" {
			job.City = defaultCity
		}
	}
	return &cfg, nil
}
