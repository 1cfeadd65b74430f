package hubservice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sauqing9/api-sitras/internal/cleanup"
	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/mlproxy"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository/files"
	"github.com/sauqing9/api-sitras/internal/repository/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalibrator struct {
	result *mlproxy.CalibrationResult
	err    error
	got    []mlproxy.CalibrationRequest
}

func (c *stubCalibrator) Calibrate(_ context.Context, req mlproxy.CalibrationRequest) (*mlproxy.CalibrationResult, error) {
	c.got = append(c.got, req)
	return c.result, c.err
}

type stubRecommender struct {
	result *mlproxy.RecommendationResult
	err    error
	got    []mlproxy.RecommendationRequest
}

func (r *stubRecommender) Recommend(_ context.Context, req mlproxy.RecommendationRequest) (*mlproxy.RecommendationResult, error) {
	r.got = append(r.got, req)
	return r.result, r.err
}

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := database.NewSQLiteDB(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	store, err := sqlstore.New(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleVariables() models.Variables {
	return models.Variables{PH: 5.2, Suhu: 28, Kelembaban: 60, N: 55, P: 12, K: 41, EC: 500}
}

func TestIngestRawCalibrationSucceeds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cal := &stubCalibrator{result: &mlproxy.CalibrationResult{PH: 6.5, N: 40, P: 20, K: 30}}
	svc := New(store, nil, cal, &stubRecommender{}, Options{})

	res, err := svc.IngestRaw(ctx, sampleVariables())
	require.NoError(t, err)
	assert.True(t, res.Calibration.Triggered)
	assert.True(t, res.Calibration.Succeeded)
	assert.Equal(t, "Raw data saved successfully (calibration succeeded)", res.Message())

	require.Len(t, cal.got, 1)
	assert.Equal(t, mlproxy.CalibrationRequest{PH: 5.2, N: 55, P: 12, K: 41}, cal.got[0])

	calibrated, err := store.Calibrated().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Variables{PH: 6.5, N: 40, P: 20, K: 30, Suhu: 28, Kelembaban: 60, EC: 500}, calibrated.Variables)
	assert.True(t, res.Raw.Timestamp.Equal(calibrated.Timestamp))
	assert.Equal(t, calibrated.ID, res.Calibration.CalibratedID)

	raw, err := store.Raw().Get(ctx, res.Raw.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleVariables(), raw.Variables)
}

func TestIngestRawCalibrationFailureKeepsRaw(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cal := &stubCalibrator{err: &mlproxy.UpstreamError{Service: "calibration", Kind: mlproxy.KindTimeout}}
	svc := New(store, nil, cal, &stubRecommender{}, Options{})

	var (
		mu     sync.Mutex
		failed []map[string]string
	)
	svc.On(EventCalibrationFailed, func(labels map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, labels)
	})

	res, err := svc.IngestRaw(ctx, sampleVariables())
	require.NoError(t, err)
	assert.True(t, res.Calibration.Triggered)
	assert.False(t, res.Calibration.Succeeded)
	assert.Equal(t, "calibration service timeout", res.Calibration.Error)
	assert.Nil(t, res.Calibrated)

	n, err := store.Raw().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = store.Calibrated().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1 && failed[0]["raw_id"] == res.Raw.ID && failed[0]["kind"] == "timeout"
	}, time.Second, 10*time.Millisecond)
}

func TestHandlersReceiveLabels(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := New(store, nil, nil, &stubRecommender{}, Options{})

	var got []map[string]string
	record := func(labels map[string]string) { got = append(got, labels) }
	svc.On(EventRawCreated, record)
	svc.On(cleanup.PurgedEvent(cleanup.TargetRaw), record)

	require.NoError(t, svc.events.Emit(EventRawCreated, map[string]string{"id": "raw_x"}))

	res, err := svc.IngestRaw(ctx, sampleVariables())
	require.NoError(t, err)
	_, err = svc.Cleanup.DeleteAll(ctx, cleanup.TargetRaw)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "raw_x", got[0]["id"])
	assert.Equal(t, res.Raw.ID, got[1]["id"])
	assert.Equal(t, "1", got[2]["count"])
}

func TestIngestRawRejectsOutOfRangeCalibration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cal := &stubCalibrator{result: &mlproxy.CalibrationResult{PH: 19, N: 40, P: 20, K: 30}}
	svc := New(store, nil, cal, &stubRecommender{}, Options{})

	res, err := svc.IngestRaw(ctx, sampleVariables())
	require.NoError(t, err)
	assert.False(t, res.Calibration.Succeeded)
	assert.Equal(t, "calibrated values out of range", res.Calibration.Error)

	n, err := store.Calibrated().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestIngestRawWithoutCalibrator(t *testing.T) {
	svc := New(newTestStore(t), nil, nil, &stubRecommender{}, Options{})
	res, err := svc.IngestRaw(context.Background(), sampleVariables())
	require.NoError(t, err)
	assert.False(t, res.Calibration.Triggered)
	assert.Equal(t, "Raw data saved successfully (calibration skipped)", res.Message())
}

func TestIngestRawValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cal := &stubCalibrator{}
	svc := New(store, nil, cal, &stubRecommender{}, Options{})

	vars := sampleVariables()
	vars.PH = 15
	_, err := svc.IngestRaw(ctx, vars)
	assert.True(t, errors.IsValidation(err))
	assert.Empty(t, cal.got)

	n, err := store.Raw().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestLatestNutrients(t *testing.T) {
	ctx := context.Background()
	svc := New(newTestStore(t), nil, nil, &stubRecommender{}, Options{})

	_, err := svc.LatestNutrients(ctx)
	assert.True(t, errors.IsNotFound(err))

	saved, err := svc.SaveCalibrated(ctx, sampleVariables())
	require.NoError(t, err)

	snap, err := svc.LatestNutrients(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12.0, *snap.P)
	assert.Equal(t, 55.0, *snap.N)
	assert.Equal(t, 41.0, *snap.K)
	assert.True(t, saved.Timestamp.Equal(snap.Timestamp))
}

func TestRecommendPersists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p2o5 := 27.5
	rec := &stubRecommender{result: &mlproxy.RecommendationResult{
		Doses:             models.Doses{Urea: 250, SP36: 100, KCl: 75},
		Reasons:           models.Reasons{"info": "low phosphorus"},
		Tips:              "split urea into two applications",
		ConversionResults: &models.ConversionResults{StatusP: "Rendah", P2O5: &p2o5},
	}}
	svc := New(store, nil, nil, rec, Options{})

	params := models.RecommendationParams{P: 12, N: 55, K: 41, JenisTanaman: "Padi", TargetPadi: models.TargetSixToEight}
	res, err := svc.Recommend(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, models.Doses{Urea: 250, SP36: 100, KCl: 75}, res.Recommendation)
	require.NotNil(t, res.ConversionResults)
	assert.Equal(t, "Rendah", res.ConversionResults.StatusP)

	require.Len(t, rec.got, 1)
	assert.Equal(t, "6-8", rec.got[0].TargetPadi)

	stored, err := store.Recommendations().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, params, stored.Input)
	assert.Equal(t, "low phosphorus", stored.Reasons["info"])
	assert.True(t, res.Timestamp.Equal(stored.Timestamp))
}

func TestRecommendFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := &stubRecommender{err: &mlproxy.UpstreamError{Service: "recommendation", Kind: mlproxy.KindUnsuccessful, Err: stderrors.New("model offline")}}
	svc := New(store, nil, nil, rec, Options{})

	_, err := svc.Recommend(ctx, models.RecommendationParams{P: 1, N: 2, K: 3, JenisTanaman: "Padi", TargetPadi: models.TargetNotApplicable})
	require.Error(t, err)
	assert.True(t, errors.IsUpstream(err))
	assert.Equal(t, 400, errors.HTTPStatus(err))

	n, err := store.Recommendations().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestPreviewRecommendationReturnsEnvelope(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	envelope := json.RawMessage(`{"success":true,"data":{"recommendations":{"urea":1,"sp36":2,"kcl":3}}}`)
	rec := &stubRecommender{result: &mlproxy.RecommendationResult{Envelope: envelope}}
	svc := New(store, nil, nil, rec, Options{})

	got, err := svc.PreviewRecommendation(ctx, models.RecommendationParams{JenisTanaman: "Padi", TargetPadi: models.TargetBelowSix})
	require.NoError(t, err)
	assert.JSONEq(t, string(envelope), string(got))

	n, err := store.Recommendations().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSaveRecommendation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := &stubRecommender{}
	svc := New(store, nil, nil, rec, Options{})

	var bundle models.PrecomputedRecommendation
	require.NoError(t, json.Unmarshal([]byte(`{
		"input": {"P": "12", "N": 55, "K": 41, "target_padi": ">8"},
		"recommendations": {"urea": 200, "sp36": 50, "kcl": 60},
		"reasons": "phosphorus is low",
		"tips": "apply before planting"
	}`), &bundle))

	saved, err := svc.SaveRecommendation(ctx, &bundle)
	require.NoError(t, err)
	assert.Empty(t, rec.got)
	assert.Equal(t, models.TargetAboveEight, saved.Input.TargetPadi)
	assert.Equal(t, "Padi", saved.Input.JenisTanaman)
	assert.Equal(t, models.Reasons{"info": "phosphorus is low"}, saved.Reasons)

	_, err = svc.SaveRecommendation(ctx, &models.PrecomputedRecommendation{})
	require.Error(t, err)
	assert.Equal(t, models.MsgIncompleteInput, err.(*errors.APIError).Message)
}

func TestSaveManualWithAttachment(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	attachments, err := files.NewFileRepository(files.FileConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	svc := New(store, attachments, nil, &stubRecommender{}, Options{
		MaxFileSize:      1024,
		AllowedMimeTypes: []string{"text/plain"},
	})

	body := "P=12 N=55 K=41"
	md, err := svc.SaveManual(ctx, &models.ManualInput{
		Type:     models.ManualTypeFile,
		Content:  "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(body)),
		FileName: "../lab/report.txt",
	})
	require.NoError(t, err)
	require.NotNil(t, md.Attachment)
	assert.Equal(t, "manual/"+md.ID+"/report.txt", md.Attachment.Key)
	assert.EqualValues(t, len(body), md.Attachment.Size)
	assert.Empty(t, md.Content)

	rc, got, err := svc.OpenManualAttachment(ctx, md.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.Equal(t, "text/plain", got.Attachment.MimeType)

	require.NoError(t, svc.Cleanup.Delete(ctx, cleanup.TargetManual, md.ID))
	_, err = attachments.Open(ctx, md.Attachment.Key)
	assert.True(t, errors.IsNotFound(err))
}

func TestSaveManualKeepsDottedFileName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	attachments, err := files.NewFileRepository(files.FileConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	svc := New(store, attachments, nil, &stubRecommender{}, Options{
		MaxFileSize:      1024,
		AllowedMimeTypes: []string{"text/plain"},
	})

	md, err := svc.SaveManual(ctx, &models.ManualInput{
		Type:     models.ManualTypeFile,
		Content:  base64.StdEncoding.EncodeToString([]byte("v2")),
		FileName: "report..v2.txt",
		FileType: "text/plain",
	})
	require.NoError(t, err)
	require.NotNil(t, md.Attachment)
	assert.Equal(t, "manual/"+md.ID+"/report..v2.txt", md.Attachment.Key)

	md, err = svc.SaveManual(ctx, &models.ManualInput{
		Type:     models.ManualTypeFile,
		Content:  base64.StdEncoding.EncodeToString([]byte("up")),
		FileName: "..",
		FileType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "manual/"+md.ID+"/attachment", md.Attachment.Key)
}

func TestSaveManualRejectsDisallowedFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	attachments, err := files.NewFileRepository(files.FileConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	svc := New(store, attachments, nil, &stubRecommender{}, Options{
		MaxFileSize:      4,
		AllowedMimeTypes: []string{"application/pdf"},
	})

	_, err = svc.SaveManual(ctx, &models.ManualInput{
		Type:    models.ManualTypeFile,
		Content: base64.StdEncoding.EncodeToString([]byte("too large")),
	})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.SaveManual(ctx, &models.ManualInput{
		Type:     models.ManualTypeFile,
		Content:  base64.StdEncoding.EncodeToString([]byte("ok")),
		FileType: "image/gif",
	})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.SaveManual(ctx, &models.ManualInput{Type: models.ManualTypeFile, Content: "%%%"})
	assert.True(t, errors.IsValidation(err))

	n, err := store.Manual().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestLatestManualExtracted(t *testing.T) {
	ctx := context.Background()
	svc := New(newTestStore(t), nil, nil, &stubRecommender{}, Options{})

	_, err := svc.LatestManualExtracted(ctx)
	assert.True(t, errors.IsNotFound(err))

	p := 14.0
	_, err = svc.SaveManual(ctx, &models.ManualInput{
		Type:          models.ManualTypeText,
		Content:       "lab report",
		ExtractedData: &models.ExtractedData{P: &p},
	})
	require.NoError(t, err)
	_, err = svc.SaveManual(ctx, &models.ManualInput{Type: models.ManualTypeText, Content: "note without values"})
	require.NoError(t, err)

	md, err := svc.LatestManualExtracted(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lab report", md.Content)
	assert.Equal(t, 14.0, *md.ExtractedData.P)
}
