// FilePath: internal/models/models.target.go
package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TargetCategory is the rice yield target bucket (target_padi), encoded 1..4
type TargetCategory int

const (
	TargetBelowSix      TargetCategory = 1 // "<6"
	TargetSixToEight    TargetCategory = 2 // "6-8"
	TargetAboveEight    TargetCategory = 3 // ">8"
	TargetNotApplicable TargetCategory = 4 // "N/A"
)

var targetCodes = map[string]TargetCategory{
	"<6":  TargetBelowSix,
	"6-8": TargetSixToEight,
	">8":  TargetAboveEight,
	"N/A": TargetNotApplicable,
}

// NormalizeTargetPadi maps any wire value to a category. Unknown values map to TargetNotApplicable.
func NormalizeTargetPadi(v any) TargetCategory {
	switch t := v.(type) {
	case TargetCategory:
		return fromInt(int(t))
	case int:
		return fromInt(t)
	case float64:
		if t == math.Trunc(t) {
			return fromInt(int(t))
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return fromInt(int(n))
		}
	case string:
		s := strings.TrimSpace(t)
		if c, ok := targetCodes[s]; ok {
			return c
		}
		if n, err := strconv.Atoi(s); err == nil {
			return fromInt(n)
		}
	}
	return TargetNotApplicable
}

func fromInt(n int) TargetCategory {
	if n >= int(TargetBelowSix) && n <= int(TargetNotApplicable) {
		return TargetCategory(n)
	}
	return TargetNotApplicable
}

// Normalized returns c, or TargetNotApplicable for the zero value and out-of-range values
func (c TargetCategory) Normalized() TargetCategory {
	return fromInt(int(c))
}

// Code returns the symbolic form understood by the recommendation service
func (c TargetCategory) Code() string {
	switch c.Normalized() {
	case TargetBelowSix:
		return "<6"
	case TargetSixToEight:
		return "6-8"
	case TargetAboveEight:
		return ">8"
	default:
		return "N/A"
	}
}

// UnmarshalJSON never fails; undecodable input becomes TargetNotApplicable
func (c *TargetCategory) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		*c = TargetNotApplicable
		return nil
	}
	*c = NormalizeTargetPadi(raw)
	return nil
}
