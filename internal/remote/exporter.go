package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// exportEnvelope is the export service's response shape. Data is the
// artifact identifier used for the follow-up retrieval call.
type exportEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    string `json:"data,omitempty"`
}

// HTTPExporter calls an export/render service over HTTP.
type HTTPExporter struct {
	caller httpCaller
	logger *slog.Logger
}

func NewHTTPExporter(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPExporter {
	return &HTTPExporter{
		caller: newHTTPCaller(baseURL, token, timeout),
		logger: logger,
	}
}

func (e *HTTPExporter) Export(ctx context.Context, req ExportRequest) (string, error) {
	e.logger.Info("requesting export",
		"output", req.OutputPath,
		"format", req.Format,
		"video_count", len(req.VideoPaths),
	)

	var env exportEnvelope
	if err := e.caller.postJSON(ctx, "export", "/api/export", req, &env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", fmt.Errorf("export service: %s", messageOrUnknown(env.Message))
	}
	if env.Data == "" {
		return "", fmt.Errorf("export service returned no artifact identifier")
	}

	e.logger.Info("export accepted", "artifact_id", env.Data)
	return env.Data, nil
}

func (e *HTTPExporter) FetchArtifact(ctx context.Context, artifactID string) ([]byte, error) {
	return e.caller.get(ctx, "export", "/api/artifacts/"+artifactID)
}
