// Package project holds the in-memory edit-pipeline session: the video
// registry, transcription results, the generated script with its
// segment-selection state, and the activity trail.
package project

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// State describes the workflow lifecycle stage.
type State string

const (
	StateIdle         State = "idle"
	StateTranscribing State = "transcribing"
	// StateGenerating is declared for completeness but never entered:
	// script generation tracks its own in-flight flag so it does not
	// mask the transcription lifecycle. See workflow.Engine.
	StateGenerating State = "generating"
	StateComplete   State = "complete"
)

// DefaultName is the project name before one is derived or set.
const DefaultName = "Untitled Project"

// Video is a single input recording. ID is a stable random handle;
// Path is the de-duplication key (case-sensitive, exact match).
type Video struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	CustomName  string `json:"custom_name,omitempty"`
}

// ClipName returns the name used for this video on the exported
// timeline: the custom name when set, the filename otherwise.
func (v Video) ClipName() string {
	if v.CustomName != "" {
		return v.CustomName
	}
	return v.DisplayName
}

// TranscriptSegment is a timestamped span of transcribed speech.
// Invariant: 0 <= Start < End.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the normalized result for one video. The slice of
// Transcriptions on a Project always has one entry per video, in the
// same order, and is only ever replaced wholesale.
type Transcription struct {
	Segments []TranscriptSegment `json:"segments"`
	Duration float64             `json:"duration"`
}

// ScriptSegment is one timestamped span of the proposed edit. Keep is
// the only field mutated after creation.
type ScriptSegment struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Content    string  `json:"content"`
	VideoIndex int     `json:"video_index"`
	Keep       bool    `json:"keep"`
}

// Duration returns the segment's source duration in seconds.
func (s ScriptSegment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Script is the generated edit proposal. FullText is narrative prose
// the user may edit freely; Segments is the timeline. The two are
// intentionally decoupled.
type Script struct {
	Title                    string          `json:"title"`
	FullText                 string          `json:"full_text"`
	Segments                 []ScriptSegment `json:"segments"`
	TargetDurationMinutes    int             `json:"target_duration_minutes"`
	EstimatedDurationSeconds float64         `json:"estimated_duration_seconds"`
	UserPrompt               string          `json:"user_prompt"`
}

// LogEntry is one line of the append-only activity trail.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Project is the complete session state. It is a plain data aggregate;
// concurrency control and stage orchestration live in workflow.Engine.
type Project struct {
	Name           string          `json:"name"`
	Videos         []Video         `json:"videos"`
	Transcriptions []Transcription `json:"transcriptions,omitempty"`
	Script         *Script         `json:"script,omitempty"`
	State          State           `json:"state"`
	Trail          []LogEntry      `json:"trail"`
}

// New returns an empty project in idle state with the default name.
func New() *Project {
	return &Project{
		Name:  DefaultName,
		State: StateIdle,
	}
}

// videoExtensions is the accepted input allow-list.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
}

// IsVideoFile reports whether the filename carries an accepted video
// extension.
func IsVideoFile(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// NewID returns a random hex identifier for videos and artifacts.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
