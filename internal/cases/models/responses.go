package models

import "time"

// CheckResponse acknowledges an accepted case. Processing is asynchronous;
// callers poll GetCase for the outcome.
type CheckResponse struct {
	CaseID    string    `json:"case_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CaseResponse is the full case view returned by GetCase.
type CaseResponse struct {
	Case *Case `json:"case"`
}

// StatsResponse wraps the aggregate counters.
type StatsResponse struct {
	Stats Stats `json:"stats"`
}
