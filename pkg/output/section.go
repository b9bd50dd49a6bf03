package output

import (
	"strings"

	"github.com/de-tools/account-review/pkg/models/domain"
)

// Sections in deck order.
var Sections = []string{"overview", "dctr", "rege", "attrition", "value", "insights", "other"}

var sectionsByFamily = map[string]string{
	"A1":  "overview",
	"A2":  "overview",
	"A3":  "overview",
	"A8":  "rege",
	"A9":  "attrition",
	"A11": "value",
}

// Section returns the deck section a slide id belongs to. Slide ids are a
// family followed by an optional ".n" part, as in A9.2.
func Section(slideID string) string {
	id := strings.ToUpper(strings.TrimSpace(slideID))
	switch {
	case strings.HasPrefix(id, "DCTR"):
		return "dctr"
	case strings.HasPrefix(id, "S"):
		return "insights"
	}
	family, _, _ := strings.Cut(id, ".")
	if name, ok := sectionsByFamily[family]; ok {
		return name
	}
	return "other"
}

// SectionSlides are the successful slides of one section.
type SectionSlides struct {
	Name   string
	Slides []domain.AnalysisResult
}

// Group sorts successful slides into sections, keeping slide order within
// a section. Failed artifacts are dropped and empty sections omitted.
func Group(slides []domain.AnalysisResult) []SectionSlides {
	bySection := map[string][]domain.AnalysisResult{}
	for _, s := range slides {
		if !s.Success {
			continue
		}
		name := Section(s.SlideID)
		bySection[name] = append(bySection[name], s)
	}
	out := make([]SectionSlides, 0, len(bySection))
	for _, name := range Sections {
		if len(bySection[name]) > 0 {
			out = append(out, SectionSlides{Name: name, Slides: bySection[name]})
		}
	}
	return out
}
