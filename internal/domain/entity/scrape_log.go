package entity

import "time"

// Scrape log events
const (
	LogEventStart   = "start"
	LogEventSuccess = "success"
	LogEventError   = "error"
	LogEventFailure = "failure"
)

// ScrapeLog is one entry in the scraping log
type ScrapeLog struct {
	ID               string    `json:"id" bson:"_id,omitempty"`
	SessionID        string    `json:"sessionId" bson:"sessionId"`
	Source           string    `json:"source" bson:"source"`
	Event            string    `json:"event" bson:"event"`
	Phase            string    `json:"phase,omitempty" bson:"phase,omitempty"`
	Message          string    `json:"message" bson:"message"`
	RecordsProcessed int       `json:"recordsProcessed,omitempty" bson:"recordsProcessed,omitempty"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
}
