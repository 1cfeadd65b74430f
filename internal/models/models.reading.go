// FilePath: internal/models/models.reading.go
package models

import "time"

// Variables holds one soil sample. Ranges apply to raw and calibrated readings alike.
type Variables struct {
	PH         float64 `json:"pH" bson:"pH" validate:"gte=0,lte=14"`
	Suhu       float64 `json:"suhu" bson:"suhu" validate:"gte=0,lte=100"`
	Kelembaban float64 `json:"kelembaban" bson:"kelembaban" validate:"gte=0,lte=100"`
	N          float64 `json:"N" bson:"N" validate:"gte=0,lte=1000"`
	P          float64 `json:"P" bson:"P" validate:"gte=0,lte=1000"`
	K          float64 `json:"K" bson:"K" validate:"gte=0,lte=1000"`
	EC         float64 `json:"EC" bson:"EC" validate:"gte=0,lte=2000"`
}

// RawReading is an unprocessed sample as sent by the field device
type RawReading struct {
	Record    `bson:",inline"`
	Variables Variables `json:"variables" bson:"variables"`
}

// CalibratedReading is a sample after correction by the calibration service.
// It shares its timestamp with the raw reading it was derived from.
type CalibratedReading struct {
	Record    `bson:",inline"`
	Variables Variables `json:"variables" bson:"variables"`
}

// VariablesInput is the wire form of Variables; every field must be present
type VariablesInput struct {
	PH         *float64 `json:"pH" validate:"required"`
	Suhu       *float64 `json:"suhu" validate:"required"`
	Kelembaban *float64 `json:"kelembaban" validate:"required"`
	N          *float64 `json:"N" validate:"required"`
	P          *float64 `json:"P" validate:"required"`
	K          *float64 `json:"K" validate:"required"`
	EC         *float64 `json:"EC" validate:"required"`
}

// ReadingInput accepts both {"variables": {...}} and the flat variables object
type ReadingInput struct {
	VariablesInput
	Nested *VariablesInput `json:"variables"`
}

// Variables validates presence and ranges and returns the resolved sample
func (in *ReadingInput) Variables() (Variables, error) {
	src := &in.VariablesInput
	if in.Nested != nil {
		src = in.Nested
	}
	if err := Validate(src); err != nil {
		return Variables{}, err
	}
	vars := Variables{
		PH:         *src.PH,
		Suhu:       *src.Suhu,
		Kelembaban: *src.Kelembaban,
		N:          *src.N,
		P:          *src.P,
		K:          *src.K,
		EC:         *src.EC,
	}
	if err := Validate(&vars); err != nil {
		return Variables{}, err
	}
	return vars, nil
}

// NutrientSnapshot is the auto-populate view of the latest P/N/K values
type NutrientSnapshot struct {
	P         *float64  `json:"P"`
	N         *float64  `json:"N"`
	K         *float64  `json:"K"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot returns the P/N/K view of a calibrated reading
func (c *CalibratedReading) Snapshot() NutrientSnapshot {
	p, n, k := c.Variables.P, c.Variables.N, c.Variables.K
	return NutrientSnapshot{P: &p, N: &n, K: &k, Timestamp: c.Timestamp}
}
