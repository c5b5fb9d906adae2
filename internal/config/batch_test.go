package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBatch(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadBatchConfig(t *testing.T) {
	path := writeBatch(t, `{
  "jobs": [
    {"video": " a.mp4 ", "street": "Jalan Kaliurang", "direction": "utara"},
    {"video": "b.mp4", "street": "Jalan Magelang", "direction": "selatan", "city": "Sleman"}
  ]
}`)

	cfg, err := LoadBatchConfig(path, "Yogyakarta")
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 2)

	assert.Equal(t, BatchJob{Video: "a.mp4", Street: "Jalan Kaliurang", Direction: "utara", City: "Yogyakarta"}, cfg.Jobs[0])
	assert.Equal(t, "Sleman", cfg.Jobs[1].City)
}

func TestLoadBatchConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty jobs", body: `{"jobs": []}`},
		{name: "missing video", body: `{"jobs": [{"street": "Jalan Solo"}]}`},
		{name: "missing street", body: `{"jobs": [{"video": "x.mp4"}]}`},
		{name: "bad json", body: `{"jobs": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBatchConfig(writeBatch(t, tt.body), "Yogyakarta")
			assert.Error(t, err)
		})
	}
}

func TestLoadBatchConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadBatchConfig("jobs.txt", "Yogyakarta")
	assert.Error(t, err)
}
