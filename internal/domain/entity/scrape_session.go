package entity

import (
	"time"
)

// SourceStatus is the progress state of one source within a session
type SourceStatus string

// Source progress states
const (
	SourceIdle      SourceStatus = "idle"
	SourcePhase1    SourceStatus = "phase1"
	SourcePhase2    SourceStatus = "phase2"
	SourceCompleted SourceStatus = "completed"
	SourceError     SourceStatus = "error"
)

// IsTerminal reports whether the source has finished, successfully or not
func (s SourceStatus) IsTerminal() bool {
	return s == SourceCompleted || s == SourceError
}

// SessionStatus is the overall status derived from all source states
type SessionStatus string

// Overall session states
const (
	SessionInProgress     SessionStatus = "in_progress"
	SessionCompleted      SessionStatus = "completed"
	SessionPartialSuccess SessionStatus = "partial_success"
	SessionFailed         SessionStatus = "failed"
)

// SourceProgress holds the last reported state of one source
type SourceProgress struct {
	Status           SourceStatus `json:"status" bson:"status"`
	Message          string       `json:"message,omitempty" bson:"message,omitempty"`
	RecordsProcessed int          `json:"recordsProcessed" bson:"recordsProcessed"`
	Error            string       `json:"error,omitempty" bson:"error,omitempty"`
	UpdatedAt        time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// ScrapeSession is the persisted record of one search run
type ScrapeSession struct {
	SessionID   string                    `json:"sessionId" bson:"sessionId"`
	Params      FlightSearchParams        `json:"params" bson:"params"`
	Sources     map[string]SourceProgress `json:"sources" bson:"sources"`
	Status      SessionStatus             `json:"status" bson:"status"`
	CreatedAt   time.Time                 `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time                 `json:"updatedAt" bson:"updatedAt"`
	CompletedAt *time.Time                `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// SourceUpdate is a partial update for one source. Zero values mean unchanged.
type SourceUpdate struct {
	Status           SourceStatus
	Message          *string
	RecordsProcessed *int
	Error            *string
}

// SessionUpdate is a partial update event for a session
type SessionUpdate struct {
	SessionID string
	Sources   map[string]SourceUpdate
}

// Fields flattens the update into the event shape consumed downstream,
// e.g. kiwiStatus, kiwiMessage, skyscannerRecordsProcessed.
func (u SessionUpdate) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"sessionId": u.SessionID,
	}
	for source, su := range u.Sources {
		if su.Status != "" {
			fields[source+"Status"] = su.Status
		}
		if su.Message != nil {
			fields[source+"Message"] = *su.Message
		}
		if su.RecordsProcessed != nil {
			fields[source+"RecordsProcessed"] = *su.RecordsProcessed
		}
		if su.Error != nil {
			fields[source+"Error"] = *su.Error
		}
	}
	return fields
}
