package seed

import (
	"context"
	"testing"

	"casedesk/internal/models"
	"casedesk/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_DeterministicWithSeed(t *testing.T) {
	a := NewFactory(42)
	b := NewFactory(42)

	for range 5 {
		assert.Equal(t, a.ReportInput(), b.ReportInput())
		assert.Equal(t, a.Outcome(), b.Outcome())
	}
}

func TestFactory_ReportInputIsValid(t *testing.T) {
	f := NewFactory(7)
	for range 50 {
		in := f.ReportInput()
		assert.NotEmpty(t, in.Title)
		assert.LessOrEqual(t, len(in.Title), 300)
		assert.Contains(t, categories, in.Category)
		_, ok := models.ParseReportPriority(in.Priority)
		assert.True(t, ok, in.Priority)
	}
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	files := testutil.NewMemoryFileStore()
	ctx := context.Background()

	s := NewSeeder(db, files, Options{Owners: 3, Reviewers: 2, ReportsPerOwner: 6, WithAttachments: true, RandSeed: 99})
	summary, err := s.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 18, summary.Reports)
	assert.Equal(t, 18, summary.Attachments)
	assert.Equal(t, 18, files.Len())

	var total int64
	require.NoError(t, db.Model(&models.Report{}).Count(&total).Error)
	assert.EqualValues(t, 18, total)

	counted := 0
	for status, n := range summary.ByStatus {
		var stored int64
		require.NoError(t, db.Model(&models.Report{}).Where("status = ?", status).Count(&stored).Error)
		assert.EqualValues(t, n, stored, string(status))
		counted += n
	}
	assert.Equal(t, 18, counted)

	// every report has at least its creation event
	var withoutHistory int64
	require.NoError(t, db.Model(&models.Report{}).
		Where("id NOT IN (?)", db.Model(&models.ReportEvent{}).Select("report_id")).
		Count(&withoutHistory).Error)
	assert.Zero(t, withoutHistory)

	require.NoError(t, s.ClearAll(ctx))
	require.NoError(t, db.Model(&models.Report{}).Count(&total).Error)
	assert.Zero(t, total)
	assert.Zero(t, files.Len())
}

func TestSeeder_DryRunWritesNothing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	files := testutil.NewMemoryFileStore()

	s := NewSeeder(db, files, Options{Owners: 2, ReportsPerOwner: 3, WithAttachments: true, DryRun: true})
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Reports)
	assert.Zero(t, summary.Attachments)

	var total int64
	require.NoError(t, db.Model(&models.Report{}).Count(&total).Error)
	assert.Zero(t, total)
	assert.Zero(t, files.Len())
	require.NoError(t, s.ClearAll(context.Background()))
}
