package api

import (
	"time"

	"github.com/cutroom/cutroom-agent/internal/project"
	"github.com/cutroom/cutroom-agent/internal/workflow"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	AgentID string `json:"agent_id"`
}

type AddVideosRequest struct {
	Paths []string `json:"paths"`
}

type AddVideosResponse struct {
	Added   []VideoResponse `json:"added"`
	Skipped []string        `json:"skipped,omitempty"`
}

type VideoResponse struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	CustomName  string `json:"custom_name,omitempty"`
}

type SetClipNameRequest struct {
	ClipName string `json:"clip_name"`
}

type SetProjectNameRequest struct {
	Name string `json:"name"`
}

type GenerateScriptRequest struct {
	Prompt        string `json:"prompt"`
	TargetMinutes int    `json:"target_minutes,omitempty"`
}

type SetFullTextRequest struct {
	FullText string `json:"full_text"`
}

type ScriptSegmentResponse struct {
	Index      int     `json:"index"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Content    string  `json:"content"`
	VideoIndex int     `json:"video_index"`
	Keep       bool    `json:"keep"`
}

type ScriptResponse struct {
	Title                    string                  `json:"title"`
	FullText                 string                  `json:"full_text"`
	Segments                 []ScriptSegmentResponse `json:"segments"`
	TargetDurationMinutes    int                     `json:"target_duration_minutes"`
	EstimatedDurationSeconds float64                 `json:"estimated_duration_seconds"`
	UserPrompt               string                  `json:"user_prompt"`
}

type TranscriptionResponse struct {
	SegmentCount int     `json:"segment_count"`
	Duration     float64 `json:"duration"`
}

type ProjectResponse struct {
	Name                 string                  `json:"name"`
	State                project.State           `json:"state"`
	Videos               []VideoResponse         `json:"videos"`
	Transcriptions       []TranscriptionResponse `json:"transcriptions,omitempty"`
	Script               *ScriptResponse         `json:"script,omitempty"`
	SelectedCount        int                     `json:"selected_count"`
	SelectedDurationS    float64                 `json:"selected_duration_s"`
	TotalSourceDurationS float64                 `json:"total_source_duration_s"`
}

type TrailEntryResponse struct {
	At      string `json:"at"`
	Message string `json:"message"`
}

type TrailResponse struct {
	Entries []TrailEntryResponse `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(v project.Video) VideoResponse {
	return VideoResponse{
		ID:          v.ID,
		Path:        v.Path,
		DisplayName: v.DisplayName,
		CustomName:  v.CustomName,
	}
}

func ScriptToResponse(s *project.Script) *ScriptResponse {
	if s == nil {
		return nil
	}
	resp := &ScriptResponse{
		Title:                    s.Title,
		FullText:                 s.FullText,
		Segments:                 make([]ScriptSegmentResponse, len(s.Segments)),
		TargetDurationMinutes:    s.TargetDurationMinutes,
		EstimatedDurationSeconds: s.EstimatedDurationSeconds,
		UserPrompt:               s.UserPrompt,
	}
	for i, seg := range s.Segments {
		resp.Segments[i] = ScriptSegmentResponse{
			Index:      i,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			Content:    seg.Content,
			VideoIndex: seg.VideoIndex,
			Keep:       seg.Keep,
		}
	}
	return resp
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	resp := ProjectResponse{
		Name:                 p.Name,
		State:                p.State,
		Videos:               make([]VideoResponse, len(p.Videos)),
		Script:               ScriptToResponse(p.Script),
		SelectedCount:        len(p.SelectedSegments()),
		SelectedDurationS:    p.SelectedDurationSeconds(),
		TotalSourceDurationS: p.TotalSourceDurationSeconds(),
	}
	for i, v := range p.Videos {
		resp.Videos[i] = VideoToResponse(v)
	}
	for _, t := range p.Transcriptions {
		resp.Transcriptions = append(resp.Transcriptions, TranscriptionResponse{
			SegmentCount: len(t.Segments),
			Duration:     t.Duration,
		})
	}
	return resp
}

func TrailToResponse(entries []project.LogEntry) TrailResponse {
	resp := TrailResponse{Entries: make([]TrailEntryResponse, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = TrailEntryResponse{
			At:      e.At.Format(time.RFC3339),
			Message: e.Message,
		}
	}
	return resp
}

// StatusResponse mirrors workflow.Status on the wire.
type StatusResponse = workflow.Status
