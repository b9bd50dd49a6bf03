package domain

import "github.com/de-tools/account-review/pkg/table"

// AnalysisResult is one artifact produced by an analysis module: usually a
// slide with its tables. Renderers skip artifacts with Success unset.
type AnalysisResult struct {
	SlideID   string
	Title     string
	ChartPath string
	Tables    map[string]*table.Sheet
	Notes     string
	Success   bool
	Error     string
}

// FailedResult builds the artifact recorded for a module that returned an error.
func FailedResult(slideID, title string, err error) AnalysisResult {
	return AnalysisResult{SlideID: slideID, Title: title, Error: err.Error()}
}
