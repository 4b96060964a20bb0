package remote

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/cutroom/cutroom-agent/internal/edl"
	"github.com/cutroom/cutroom-agent/internal/project"
)

// ErrServiceNotConfigured is returned by the stub transcriber and
// script generator: both stages need a real collaborator to produce
// anything useful.
var ErrServiceNotConfigured = errors.New("service not configured")

// StubTranscriber stands in when no transcription service URL is set.
type StubTranscriber struct {
	logger *slog.Logger
}

func NewStubTranscriber(logger *slog.Logger) *StubTranscriber {
	return &StubTranscriber{logger: logger}
}

func (s *StubTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) ([]project.Transcription, error) {
	s.logger.Info("transcriber stub: transcription requested", "video_count", len(req.VideoPaths))
	return nil, ErrServiceNotConfigured
}

// StubScriptGenerator stands in when no script service URL is set.
type StubScriptGenerator struct {
	logger *slog.Logger
}

func NewStubScriptGenerator(logger *slog.Logger) *StubScriptGenerator {
	return &StubScriptGenerator{logger: logger}
}

func (s *StubScriptGenerator) Generate(ctx context.Context, req GenerateRequest) (*project.Script, error) {
	s.logger.Info("script stub: generation requested", "target_minutes", req.TargetDurationMinutes)
	return nil, ErrServiceNotConfigured
}

// LocalExporter renders the EDL in-process when no export service is
// configured. It keeps the same two-step contract as the HTTP
// exporter: Export produces an artifact identifier, FetchArtifact
// retrieves the bytes.
type LocalExporter struct {
	logger *slog.Logger

	mu        sync.Mutex
	artifacts map[string][]byte
}

func NewLocalExporter(logger *slog.Logger) *LocalExporter {
	return &LocalExporter{
		logger:    logger,
		artifacts: make(map[string][]byte),
	}
}

func (l *LocalExporter) Export(ctx context.Context, req ExportRequest) (string, error) {
	if req.Script == nil {
		return "", errors.New("no script to export")
	}

	clips := buildClips(req)
	if len(clips) == 0 {
		return "", errors.New("no segments selected for export")
	}

	title := edl.SanitizeTitle(req.ProjectName, 120)
	if title == "" {
		title = "cutroom_export"
	}

	content := edl.Generate(clips, title, req.FrameRate)

	id := project.NewID()
	l.mu.Lock()
	l.artifacts[id] = []byte(content)
	l.mu.Unlock()

	l.logger.Info("local export rendered", "artifact_id", id, "clips", len(clips))
	return id, nil
}

func (l *LocalExporter) FetchArtifact(ctx context.Context, artifactID string) ([]byte, error) {
	l.mu.Lock()
	data, ok := l.artifacts[artifactID]
	l.mu.Unlock()
	if !ok {
		return nil, errors.New("unknown artifact: " + artifactID)
	}
	return data, nil
}

// buildClips maps the kept segments, in script order, onto their
// source videos. Segments pointing at an out-of-range video fall back
// to the first source, matching the tolerant behavior of downstream
// editors.
func buildClips(req ExportRequest) []edl.Clip {
	var clips []edl.Clip
	for _, seg := range req.Script.Segments {
		if !seg.Keep || seg.EndTime <= seg.StartTime {
			continue
		}
		idx := seg.VideoIndex
		if idx < 0 || idx >= len(req.VideoPaths) {
			idx = 0
		}
		if idx >= len(req.VideoPaths) {
			continue
		}
		name := filepath.Base(req.VideoPaths[idx])
		if idx < len(req.ClipNames) && req.ClipNames[idx] != "" {
			name = req.ClipNames[idx]
		}
		clips = append(clips, edl.Clip{
			ClipName:     name,
			SourcePath:   req.VideoPaths[idx],
			StartSeconds: seg.StartTime,
			EndSeconds:   seg.EndTime,
			Content:      seg.Content,
		})
	}
	return clips
}
