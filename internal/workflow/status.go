package workflow

import (
	"strings"

	"github.com/cutroom/cutroom-agent/internal/project"
)

// Status is a point-in-time summary of the pipeline for the API.
type Status struct {
	ProjectName          string        `json:"project_name"`
	State                project.State `json:"state"`
	Generating           bool          `json:"generating"`
	VideoCount           int           `json:"video_count"`
	TranscriptionCount   int           `json:"transcription_count"`
	HasScript            bool          `json:"has_script"`
	SegmentCount         int           `json:"segment_count"`
	SelectedCount        int           `json:"selected_count"`
	SelectedDurationS    float64       `json:"selected_duration_s"`
	TotalSourceDurationS float64       `json:"total_source_duration_s"`
}

// Status returns the current pipeline summary, including the derived
// timeline aggregates. Aggregates are recomputed on every call, never
// cached across mutations.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		ProjectName:          e.proj.Name,
		State:                e.proj.State,
		Generating:           e.generating,
		VideoCount:           len(e.proj.Videos),
		TranscriptionCount:   len(e.proj.Transcriptions),
		HasScript:            e.proj.Script != nil,
		SelectedCount:        len(e.proj.SelectedSegments()),
		SelectedDurationS:    e.proj.SelectedDurationSeconds(),
		TotalSourceDurationS: e.proj.TotalSourceDurationSeconds(),
	}
	if e.proj.Script != nil {
		s.SegmentCount = len(e.proj.Script.Segments)
	}
	return s
}

func trimPrompt(prompt string) string {
	return strings.TrimSpace(prompt)
}
