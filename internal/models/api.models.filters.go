package models

// HistoryQuery defines the query options of the history endpoints
type HistoryQuery struct {
	Limit int `schema:"limit"`
}

// Resolve returns the effective limit. Non-positive values fall back to def; max caps the result.
func (q HistoryQuery) Resolve(def, max int) int {
	limit := q.Limit
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
