package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/pothole.report/internal/pothole"
)

func TestNewReport(t *testing.T) {
	t.Parallel()

	r := NewReport("Jalan Kaliurang", 2500, 7000, 20000)
	assert.Equal(t, 3, r.Total)
	assert.Len(t, r.Potholes, 3)
	assert.Equal(t, 1, r.Statistik.Small)
	assert.Equal(t, 1, r.Statistik.Medium)
	assert.Equal(t, 1, r.Statistik.Large)
	assert.Equal(t, 30.0, r.Duration)
	assert.NotEmpty(t, r.RunID)

	for i, p := range r.Potholes {
		assert.Equal(t, i+1, p.ID)
	}
	assert.Equal(t, pothole.SeverityLarge, r.Potholes[2].Severity)
}

func TestNewReportUniqueRunIDs(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, NewReport("a").RunID, NewReport("a").RunID)
}
