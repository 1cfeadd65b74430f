// FilePath: internal/models/models.record.go
package models

import "time"

// Record is the envelope every stored entity carries
type Record struct {
	ID        string    `json:"_id" bson:"_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Meta gives stores access to the envelope of an embedding entity
func (r *Record) Meta() *Record {
	return r
}

// Document is implemented by every entity that embeds Record
type Document interface {
	Meta() *Record
}

// StoreTime normalizes a timestamp to the precision all store drivers round-trip
func StoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
