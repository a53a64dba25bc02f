package domain

import "time"

// HistoryItem records one interaction check. Append-only from the
// caller's perspective; the history log evicts the oldest entries past
// its capacity.
type HistoryItem struct {
	ID        string    `json:"id"`
	MedA      string    `json:"medA"`
	MedB      string    `json:"medB"`
	IsRisky   bool      `json:"isRisky"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
