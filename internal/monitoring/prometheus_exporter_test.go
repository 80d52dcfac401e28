package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enplerp/backoffice/internal/models"
)

type staticLister struct {
	archives []models.BackupArchive
	err      error
}

func (l staticLister) Archives() ([]models.BackupArchive, error) {
	return l.archives, l.err
}

func TestPrometheusExporter_CollectMetrics(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	exporter := NewPrometheusExporter(staticLister{archives: []models.BackupArchive{
		{Name: "b.backup", SizeBytes: 300, ModifiedAt: now.Add(-time.Hour)},
		{Name: "a.backup", SizeBytes: 200, ModifiedAt: now.Add(-48 * time.Hour)},
	}})
	exporter.now = func() time.Time { return now }

	require.NoError(t, exporter.CollectMetrics())
	assert.Equal(t, 2.0, testutil.ToFloat64(ArchiveCount))
	assert.Equal(t, 500.0, testutil.ToFloat64(ArchiveBytes))
	assert.Equal(t, 3600.0, testutil.ToFloat64(NewestArchiveAge))
}

func TestPrometheusExporter_EmptyDirectory(t *testing.T) {
	require.NoError(t, NewPrometheusExporter(staticLister{}).CollectMetrics())
	assert.Equal(t, 0.0, testutil.ToFloat64(ArchiveCount))
	assert.Equal(t, -1.0, testutil.ToFloat64(NewestArchiveAge))
}

func TestPrometheusExporter_ScanError(t *testing.T) {
	err := NewPrometheusExporter(staticLister{err: errors.New("permission denied")}).CollectMetrics()
	assert.ErrorContains(t, err, "permission denied")
}

func TestRecordBackup(t *testing.T) {
	before := testutil.ToFloat64(BackupsTotal.WithLabelValues("manual", "failure"))
	RecordBackup("manual", false, 0)
	assert.Equal(t, before+1, testutil.ToFloat64(BackupsTotal.WithLabelValues("manual", "failure")))
}
