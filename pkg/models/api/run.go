package api

import "time"

type Step struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

type ModuleOutcome struct {
	ModuleID  string   `json:"module_id"`
	Status    string   `json:"status"`
	Problems  []string `json:"problems,omitempty"`
	Error     string   `json:"error,omitempty"`
	Results   int      `json:"results"`
	ElapsedMs int64    `json:"elapsed_ms"`
}

type Run struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name,omitempty"`
	Month      string          `json:"month"`
	InputPath  string          `json:"input_path,omitempty"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	SlideCount int             `json:"slide_count"`
	Error      string          `json:"error,omitempty"`
	Steps      []Step          `json:"steps,omitempty"`
	Modules    []ModuleOutcome `json:"modules,omitempty"`
}

type Module struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Section  string   `json:"section"`
	Columns  []string `json:"required_columns"`
	Requires []string `json:"required_results,omitempty"`
}

type Error struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
