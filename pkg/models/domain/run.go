package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// ModuleOutcome is the dispatcher's record of one analysis module.
type ModuleOutcome struct {
	ModuleID string
	Status   OutcomeStatus
	Problems []string
	Error    string
	Results  int
	Elapsed  time.Duration
}

// StepRecord is the persisted form of a pipeline step attempt.
type StepRecord struct {
	Name    string
	Success bool
	Elapsed time.Duration
	Error   string
}

// Run is the history entry of one pipeline run.
type Run struct {
	ID         string
	ClientID   string
	ClientName string
	Month      string
	InputPath  string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	SlideCount int
	Error      string
	// Cause is the error of the first failed step. It is not persisted.
	Cause      error
	Steps      []StepRecord
	Modules    []ModuleOutcome
}
