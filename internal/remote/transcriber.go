package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cutroom/cutroom-agent/internal/project"
)

// transcribeEnvelope is the transcription service's response shape:
// one data entry per input path, in the same order.
type transcribeEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    []transcriptionPayload `json:"data,omitempty"`
}

type transcriptionPayload struct {
	Segments []segmentPayload `json:"segments"`
	Metadata struct {
		TotalDuration float64 `json:"total_duration"`
	} `json:"metadata"`
}

type segmentPayload struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// HTTPTranscriber calls a transcription service over HTTP.
type HTTPTranscriber struct {
	caller httpCaller
	logger *slog.Logger
}

func NewHTTPTranscriber(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPTranscriber {
	return &HTTPTranscriber{
		caller: newHTTPCaller(baseURL, token, timeout),
		logger: logger,
	}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) ([]project.Transcription, error) {
	t.logger.Info("requesting transcription",
		"project", req.ProjectName,
		"video_count", len(req.VideoPaths),
	)

	var env transcribeEnvelope
	if err := t.caller.postJSON(ctx, "transcribe", "/api/transcribe", req, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("transcription service: %s", messageOrUnknown(env.Message))
	}
	if len(env.Data) != len(req.VideoPaths) {
		return nil, fmt.Errorf("transcription service returned %d results for %d videos", len(env.Data), len(req.VideoPaths))
	}

	results := make([]project.Transcription, len(env.Data))
	for i, payload := range env.Data {
		segments := make([]project.TranscriptSegment, len(payload.Segments))
		for j, s := range payload.Segments {
			segments[j] = project.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text}
		}
		results[i] = project.Transcription{
			Segments: segments,
			// Duration defaults to 0 when the service omits metadata.
			Duration: payload.Metadata.TotalDuration,
		}
	}

	t.logger.Info("transcription received", "results", len(results))
	return results, nil
}

func messageOrUnknown(msg string) string {
	if msg == "" {
		return "unknown error"
	}
	return msg
}
