package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbanflow/internal/report"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "audit", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOutcome(runID string) (report.Submission, report.Outcome) {
	sub := report.Submission{
		UserID:   "user-1",
		Email:    "user@example.com",
		ImageURL: "https://cdn.example.com/leak.jpg",
		Address:  "12 MG Road",
		Fingerprint: report.GeoFingerprint{
			Geohash: "tdr1vc",
			Location: report.Location{Lat: 12.9716, Lng: 77.5946},
		},
	}
	outcome := report.Outcome{
		RunID:    runID,
		Status:   report.OutcomeSuccess,
		Category: report.CategoryWater,
		Title:    "Burst Water Main",
		Severity: report.SeverityHigh,
		Action:   report.ActionCreate,
		ReportID: "rep-42",
		Elapsed:  1250 * time.Millisecond,
	}
	return sub, outcome
}

func TestRecordRunAndRecentRuns(t *testing.T) {
	s := newTestStore(t)

	sub, outcome := sampleOutcome("run-1")
	require.NoError(t, s.RecordRun(sub, outcome))

	records, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, report.CategoryWater, got.Category)
	assert.Equal(t, report.SeverityHigh, got.Severity)
	assert.Equal(t, "Burst Water Main", got.Title)
	assert.Equal(t, report.OutcomeSuccess, got.Status)
	assert.Equal(t, report.ActionCreate, got.Action)
	assert.Equal(t, "rep-42", got.ReportID)
	assert.Equal(t, "tdr1vc", got.Geohash)
	assert.Equal(t, int64(1250), got.ElapsedMS)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		sub, outcome := sampleOutcome(id)
		require.NoError(t, s.RecordRun(sub, outcome))
		time.Sleep(2 * time.Millisecond)
	}

	records, err := s.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-c", records[0].RunID)
	assert.Equal(t, "run-b", records[1].RunID)
}

func TestRecordRunDuplicateRunID(t *testing.T) {
	s := newTestStore(t)

	sub, outcome := sampleOutcome("run-dup")
	require.NoError(t, s.RecordRun(sub, outcome))
	assert.Error(t, s.RecordRun(sub, outcome))
}

func TestRecentRunsEmpty(t *testing.T) {
	s := newTestStore(t)

	records, err := s.RecentRuns(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
