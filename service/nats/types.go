package nats

import (
	"time"

	"github.com/brojonat/solfeat/service/features"
)

// FeatureEvent is published to the subject "features.{address}" in JetStream
// each time an address's feature record is computed.
type FeatureEvent struct {
	Address string `json:"address"`
	Class   int    `json:"class"`

	// Features keeps the column order of the record; infinities are "inf".
	Features *features.Vector `json:"features"`
	Tags     features.Quality `json:"tags"`

	PublishedAt time.Time `json:"published_at"`
}

// FromRecord converts a feature record to an event for publishing.
func FromRecord(rec *features.Record) *FeatureEvent {
	return &FeatureEvent{
		Address:     rec.Address,
		Class:       rec.Class,
		Features:    rec.Features,
		Tags:        rec.Quality,
		PublishedAt: time.Now().UTC(),
	}
}

// Subject returns the subject an event for address is published to.
func Subject(address string) string {
	return SubjectPrefix + address
}
