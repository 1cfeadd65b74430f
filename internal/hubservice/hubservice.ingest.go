package hubservice

import (
	"context"

	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/mlproxy"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// IngestRaw persists a raw reading and then attempts calibration.
// Only the raw save can fail the call; calibration problems are reported in the result.
func (s *HubService) IngestRaw(ctx context.Context, vars models.Variables) (*models.IngestResult, error) {
	if err := models.Validate(&vars); err != nil {
		return nil, err
	}

	raw := &models.RawReading{Variables: vars}
	repository.Stamp(&raw.Record, repository.PrefixRaw, s.now())
	if err := s.Store.Raw().Insert(ctx, raw); err != nil {
		return nil, err
	}
	nuts.L.Infof("[IngestPipeline] Stored raw reading %s", raw.ID)
	s.emit(EventRawCreated, map[string]string{"id": raw.ID})

	result := &models.IngestResult{Raw: raw}
	if s.Calibrator == nil {
		return result, nil
	}

	result.Calibration.Triggered = true
	calibrated, err := s.calibrate(ctx, raw)
	if err != nil {
		nuts.L.Warnf("[IngestPipeline] Calibration of raw reading %s failed: %v", raw.ID, err)
		result.Calibration.Error = calibrationFailure(err)
		s.emit(EventCalibrationFailed, map[string]string{
			"raw_id": raw.ID,
			"kind":   string(mlproxy.KindOf(err)),
		})
		return result, nil
	}

	result.Calibrated = calibrated
	result.Calibration.Succeeded = true
	result.Calibration.CalibratedID = calibrated.ID
	s.emit(EventCalibrationSucceeded, map[string]string{
		"raw_id":        raw.ID,
		"calibrated_id": calibrated.ID,
	})
	return result, nil
}

// calibrate runs under its own deadline so a disconnecting client does not abort the step
func (s *HubService) calibrate(ctx context.Context, raw *models.RawReading) (*models.CalibratedReading, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.options.CalibrationTimeout)
	defer cancel()

	res, err := s.Calibrator.Calibrate(callCtx, mlproxy.CalibrationRequest{
		PH: raw.Variables.PH,
		N:  raw.Variables.N,
		P:  raw.Variables.P,
		K:  raw.Variables.K,
	})
	if err != nil {
		return nil, err
	}

	calibrated := &models.CalibratedReading{
		Variables: models.Variables{
			PH:         res.PH,
			N:          res.N,
			P:          res.P,
			K:          res.K,
			Suhu:       raw.Variables.Suhu,
			Kelembaban: raw.Variables.Kelembaban,
			EC:         raw.Variables.EC,
		},
	}
	calibrated.Timestamp = raw.Timestamp
	if err := models.Validate(&calibrated.Variables); err != nil {
		return nil, err
	}
	if err := s.Store.Calibrated().Insert(callCtx, calibrated); err != nil {
		return nil, err
	}
	nuts.L.Infof("[IngestPipeline] Stored calibrated reading %s for raw reading %s", calibrated.ID, raw.ID)
	return calibrated, nil
}

// SaveCalibrated stores a calibrated reading supplied directly by a client
func (s *HubService) SaveCalibrated(ctx context.Context, vars models.Variables) (*models.CalibratedReading, error) {
	if err := models.Validate(&vars); err != nil {
		return nil, err
	}
	calibrated := &models.CalibratedReading{Variables: vars}
	if err := s.Store.Calibrated().Insert(ctx, calibrated); err != nil {
		return nil, err
	}
	nuts.L.Infof("[IngestPipeline] Stored manual calibrated reading %s", calibrated.ID)
	return calibrated, nil
}

// LatestNutrients returns P/N/K of the most recent calibrated reading
func (s *HubService) LatestNutrients(ctx context.Context) (*models.NutrientSnapshot, error) {
	latest, err := s.Store.Calibrated().Latest(ctx)
	if err != nil {
		return nil, err
	}
	snap := latest.Snapshot()
	return &snap, nil
}

func calibrationFailure(err error) string {
	if errors.IsValidation(err) {
		return "calibrated values out of range"
	}
	if kind := mlproxy.KindOf(err); kind != "" {
		return "calibration service " + string(kind)
	}
	return "failed to store calibrated reading"
}
