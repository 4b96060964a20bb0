package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cutroom/cutroom-agent/internal/project"
)

// generateEnvelope is the script-generation service's response shape.
// Every data field is optional; absent fields take safe defaults
// during normalization.
type generateEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    *scriptPayload `json:"data,omitempty"`
}

type scriptPayload struct {
	Title                    string                 `json:"title"`
	FullText                 string                 `json:"full_text"`
	Segments                 []scriptSegmentPayload `json:"segments"`
	TargetDurationMinutes    int                    `json:"target_duration_minutes"`
	EstimatedDurationSeconds float64                `json:"estimated_duration_seconds"`
	UserPrompt               string                 `json:"user_prompt"`
}

type scriptSegmentPayload struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Content    string  `json:"content"`
	VideoIndex int     `json:"video_index"`
	// Pointer so that an absent keep field defaults to true.
	Keep *bool `json:"keep"`
}

// HTTPScriptGenerator calls a script-generation service over HTTP.
type HTTPScriptGenerator struct {
	caller httpCaller
	logger *slog.Logger
}

func NewHTTPScriptGenerator(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPScriptGenerator {
	return &HTTPScriptGenerator{
		caller: newHTTPCaller(baseURL, token, timeout),
		logger: logger,
	}
}

func (g *HTTPScriptGenerator) Generate(ctx context.Context, req GenerateRequest) (*project.Script, error) {
	g.logger.Info("requesting script generation",
		"target_minutes", req.TargetDurationMinutes,
		"transcription_count", len(req.Transcriptions),
	)

	var env generateEnvelope
	if err := g.caller.postJSON(ctx, "script", "/api/script", req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("script service: %s", messageOrUnknown(env.Message))
	}

	payload := env.Data
	if payload == nil {
		payload = &scriptPayload{}
	}

	script := &project.Script{
		Title:                    payload.Title,
		FullText:                 payload.FullText,
		Segments:                 make([]project.ScriptSegment, len(payload.Segments)),
		TargetDurationMinutes:    payload.TargetDurationMinutes,
		EstimatedDurationSeconds: payload.EstimatedDurationSeconds,
		UserPrompt:               payload.UserPrompt,
	}
	// Caller-supplied values backfill fields the service omitted.
	if script.TargetDurationMinutes == 0 {
		script.TargetDurationMinutes = req.TargetDurationMinutes
	}
	if script.UserPrompt == "" {
		script.UserPrompt = req.UserPrompt
	}

	for i, s := range payload.Segments {
		keep := true
		if s.Keep != nil {
			keep = *s.Keep
		}
		script.Segments[i] = project.ScriptSegment{
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Content:    s.Content,
			VideoIndex: s.VideoIndex,
			Keep:       keep,
		}
	}

	g.logger.Info("script received", "segments", len(script.Segments), "title", script.Title)
	return script, nil
}
