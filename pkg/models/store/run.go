package store

import "time"

type Run struct {
	ID         string
	ClientID   string
	ClientName string
	Month      string
	InputPath  string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	SlideCount int
	Error      *string
}

type StepResult struct {
	RunID     string
	Seq       int
	Name      string
	Success   bool
	ElapsedMs int64
	Error     *string
}

type ModuleOutcome struct {
	RunID     string
	Seq       int
	ModuleID  string
	Status    string
	Problems  []string
	Error     *string
	Results   int
	ElapsedMs int64
}

type RunFilter struct {
	ClientIDs []string
	Limit     int
}
