// FilePath: internal/models/models.composite.go
package models

// CalibrationStatus reports the best-effort calibration step of an ingestion
type CalibrationStatus struct {
	Triggered    bool   `json:"triggered"`
	Succeeded    bool   `json:"succeeded"`
	Error        string `json:"error,omitempty"`
	CalibratedID string `json:"calibrated_id,omitempty"`
}

// IngestResult combines the stored raw reading with the outcome of its calibration
type IngestResult struct {
	Raw         *RawReading        `json:"data"`
	Calibrated  *CalibratedReading `json:"-"`
	Calibration CalibrationStatus  `json:"calibration"`
}

// Message summarizes the ingestion for the response envelope
func (r *IngestResult) Message() string {
	switch {
	case r.Calibration.Succeeded:
		return "Raw data saved successfully (calibration succeeded)"
	case r.Calibration.Triggered:
		return "Raw data saved successfully (calibration failed)"
	default:
		return "Raw data saved successfully (calibration skipped)"
	}
}
