// Package remote holds the HTTP clients for the three external
// collaborators: the transcription service, the script-generation
// service, and the export service. Each client is responsible for
// request shaping, response normalization, and failure translation
// only; the hard algorithmic work happens on the other side of the
// wire.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cutroom/cutroom-agent/internal/project"
)

// CallError represents a non-2xx response from a collaborator service.
type CallError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors
// (4xx) are considered permanent.
func (e *CallError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// Transcriber converts input videos into timed transcripts.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) ([]project.Transcription, error)
}

// ScriptGenerator turns transcripts plus a user instruction into a
// segment-addressable script.
type ScriptGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (*project.Script, error)
}

// Exporter serializes a timeline into an EDL artifact. Export and
// FetchArtifact are two required, sequential round trips: the first
// produces an artifact identifier, the second retrieves its bytes.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) (string, error)
	FetchArtifact(ctx context.Context, artifactID string) ([]byte, error)
}

// TranscribeRequest is the wire shape of a transcription call.
type TranscribeRequest struct {
	ProjectName string   `json:"project_name"`
	VideoPaths  []string `json:"video_paths"`
}

// GenerateRequest is the wire shape of a script-generation call.
type GenerateRequest struct {
	Transcriptions        []project.Transcription `json:"transcription_results"`
	UserPrompt            string                  `json:"user_prompt"`
	TargetDurationMinutes int                     `json:"target_duration_minutes"`
}

// ExportRequest is the wire shape of an export call. ClipNames carries
// the per-video timeline names (custom name or filename), in video
// order.
type ExportRequest struct {
	Script      *project.Script `json:"generated_script"`
	VideoPaths  []string        `json:"video_paths"`
	ClipNames   []string        `json:"clip_names,omitempty"`
	OutputPath  string          `json:"output_path"`
	Format      string          `json:"export_format"`
	FrameRate   int             `json:"frame_rate,omitempty"`
	ProjectName string          `json:"project_name,omitempty"`
}

// FormatEDL is the only export format the pipeline produces.
const FormatEDL = "edl"

// httpCaller is the shared POST-JSON plumbing used by the three
// service clients.
type httpCaller struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newHTTPCaller(baseURL, token string, timeout time.Duration) httpCaller {
	return httpCaller{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// postJSON marshals body, POSTs it to path, and decodes the response
// into out. Non-2xx statuses become a *CallError carrying a bounded
// slice of the response body.
func (c httpCaller) postJSON(ctx context.Context, service, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &CallError{Service: service, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}

// get fetches raw bytes from path. Used for artifact retrieval.
func (c httpCaller) get(ctx context.Context, service, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", service, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &CallError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return io.ReadAll(resp.Body)
}
