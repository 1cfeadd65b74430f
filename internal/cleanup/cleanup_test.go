package cleanup

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository/files"
	"github.com/sauqing9/api-sitras/internal/repository/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*CleanupService, *sqlstore.Store, *files.FileRepo) {
	t.Helper()
	db, err := database.NewSQLiteDB(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	store, err := sqlstore.New(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	attachments, err := files.NewFileRepository(files.FileConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return New(store, attachments, nil), store, attachments
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Delete(context.Background(), TargetRaw, "raw_missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteAllEmitsCount(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	for i := 0; i < 2; i++ {
		require.NoError(t, store.Calibrated().Insert(ctx, &models.CalibratedReading{}))
	}

	var (
		mu     sync.Mutex
		counts []string
	)
	svc.OnCleanup(PurgedEvent(TargetCalibrated), func(labels map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, labels["count"])
	})

	require.NoError(t, svc.events.Emit(PurgedEvent(TargetCalibrated), map[string]string{"count": "0"}))
	counts = nil

	n, err := svc.DeleteAll(ctx, TargetCalibrated)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.DeleteAll(ctx, TargetCalibrated)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(counts) == 2 && counts[0] == "2" && counts[1] == "0"
	}, time.Second, 10*time.Millisecond)
}

func TestDeleteManualRemovesAttachment(t *testing.T) {
	ctx := context.Background()
	svc, store, attachments := newTestService(t)

	md := &models.ManualData{Type: models.ManualTypeFile, FileName: "report.pdf"}
	require.NoError(t, store.Manual().Insert(ctx, md))
	key := "manual/" + md.ID + "/report.pdf"
	require.NoError(t, attachments.Put(ctx, key, strings.NewReader("pdf"), 3, "application/pdf"))

	require.NoError(t, svc.Delete(ctx, TargetManual, md.ID))
	_, err := attachments.Open(ctx, key)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for _, age := range []time.Duration{48 * time.Hour, 30 * time.Hour, time.Hour} {
		raw := &models.RawReading{}
		raw.Timestamp = now.Add(-age)
		require.NoError(t, store.Raw().Insert(ctx, raw))
		cal := &models.CalibratedReading{}
		cal.Timestamp = raw.Timestamp
		require.NoError(t, store.Calibrated().Insert(ctx, cal))
	}
	rec := &models.Recommendation{}
	rec.Timestamp = now.Add(-72 * time.Hour)
	require.NoError(t, store.Recommendations().Insert(ctx, rec))

	deleted, err := svc.DeleteOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, map[Target]int64{TargetRaw: 2, TargetCalibrated: 2}, deleted)

	n, err := store.Recommendations().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "recommendations are not subject to retention")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, 5*time.Millisecond, time.Hour)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
