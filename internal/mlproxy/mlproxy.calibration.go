// FilePath: internal/mlproxy/mlproxy.calibration.go
package mlproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CalibrationRequest is the body sent to the calibration service
type CalibrationRequest struct {
	PH float64 `json:"pH"`
	N  float64 `json:"N"`
	P  float64 `json:"P"`
	K  float64 `json:"K"`
}

// CalibrationResult holds the corrected values
type CalibrationResult struct {
	PH float64
	N  float64
	P  float64
	K  float64
}

type calibrationResponse struct {
	PH *float64 `json:"pH_calibrated"`
	N  *float64 `json:"N_calibrated"`
	P  *float64 `json:"P_calibrated"`
	K  *float64 `json:"K_calibrated"`
}

// CalibrationClient calls the external calibration model
type CalibrationClient struct {
	proxy *proxy
}

func NewCalibrationClient(url string, timeout time.Duration) *CalibrationClient {
	return &CalibrationClient{proxy: newProxy("calibration", url, timeout)}
}

// Calibrate returns an *UpstreamError unless all four calibrated values came back
func (c *CalibrationClient) Calibrate(ctx context.Context, req CalibrationRequest) (*CalibrationResult, error) {
	body, err := c.proxy.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp calibrationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.proxy.fail(KindMalformed, 0, err)
	}

	var missing []string
	for _, f := range []struct {
		name string
		val  *float64
	}{
		{"pH_calibrated", resp.PH},
		{"N_calibrated", resp.N},
		{"P_calibrated", resp.P},
		{"K_calibrated", resp.K},
	} {
		if f.val == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, c.proxy.fail(KindMalformed, 0, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	return &CalibrationResult{PH: *resp.PH, N: *resp.N, P: *resp.P, K: *resp.K}, nil
}

// Enabled reports whether an endpoint is configured
func (c *CalibrationClient) Enabled() bool {
	return c.proxy.url != ""
}
