package models

import "time"

// CycleResult summarizes one fetch, normalize, reconcile run.
type CycleResult struct {
	ID             string
	Reason         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Entities       int
	Skipped        int
	StopsSeen      int
	StopsCreated   int
	AlertsDeleted  int64
	AlertsInserted int
}

func (r CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
