// Package workflow drives the edit pipeline: it owns the project
// state, gates which stage may run, calls the external collaborators
// through the remote clients, and records every stage outcome on the
// activity trail.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cutroom/cutroom-agent/internal/project"
	"github.com/cutroom/cutroom-agent/internal/remote"
)

// Gating errors. Stage operations reject violating calls up front
// instead of trusting callers to check state first.
var (
	ErrNoVideos                = errors.New("no videos loaded")
	ErrTranscriptionInProgress = errors.New("transcription already in progress")
	ErrEmptyPrompt             = errors.New("prompt must not be empty")
	ErrNoTranscriptions        = errors.New("no transcription results available")
	ErrGenerationInProgress    = errors.New("script generation already in progress")
	ErrNoScript                = errors.New("no script to export")
	ErrExportInProgress        = errors.New("export already in progress")
	ErrVideoNotFound           = errors.New("video not found")
	ErrVideoSetChanged         = errors.New("video set changed during operation")
)

// DefaultTargetMinutes is used when a script request carries no
// target duration.
const DefaultTargetMinutes = 10

// Config carries the engine's collaborators and settings.
type Config struct {
	Transcriber     remote.Transcriber
	ScriptGenerator remote.ScriptGenerator
	Exporter        remote.Exporter
	Logger          *slog.Logger
	ExportFPS       int

	// OnChange, when set, receives a deep copy of the project after
	// every successful mutation. Invocations are serialized and each
	// snapshot is at least as new as the one before it. The store uses
	// it to snapshot the session.
	OnChange func(*project.Project)
}

// Engine is the workflow state machine. All project mutations go
// through it; stage operations release the lock across their network
// round trip and re-acquire it to apply results, so the in-flight
// guards are the only protection against re-entrant stage calls.
type Engine struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	proj     *project.Project

	transcriber remote.Transcriber
	scriptGen   remote.ScriptGenerator
	exporter    remote.Exporter
	logger      *slog.Logger
	fps         int
	onChange    func(*project.Project)

	// Script generation deliberately does not enter a lifecycle
	// state: it runs on this orthogonal flag so the transcription
	// lifecycle stays visible while a script is in flight. The
	// project.StateGenerating value exists but is never entered.
	generating bool
	exporting  bool

	// registryRev increments on every video-set mutation. Stage calls
	// capture it before their round trip and discard a result that
	// arrives after the set changed, so a late apply can never
	// resurrect derived state past a cascade reset.
	registryRev uint64
}

func NewEngine(cfg Config) *Engine {
	fps := cfg.ExportFPS
	if fps <= 0 {
		fps = 24
	}
	return &Engine{
		proj:        project.New(),
		transcriber: cfg.Transcriber,
		scriptGen:   cfg.ScriptGenerator,
		exporter:    cfg.Exporter,
		logger:      cfg.Logger,
		fps:         fps,
		onChange:    cfg.OnChange,
	}
}

// Load replaces the engine's project, used to resume a persisted
// session at startup. In-flight flags reset; a restart cannot resume
// a network call.
func (e *Engine) Load(p *project.Project) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.State == project.StateTranscribing {
		p.State = project.StateIdle
	}
	e.proj = p
	e.generating = false
	e.exporting = false
	e.registryRev++
}

// Snapshot returns a deep copy of the current project.
func (e *Engine) Snapshot() *project.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proj.Clone()
}

// Generating reports whether a script-generation call is in flight.
func (e *Engine) Generating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generating
}

// notify hands a fresh copy to the snapshot hook. Must be called
// without the state lock held. notifyMu serializes deliveries and the
// snapshot is taken inside it, so the hook never sees snapshots out
// of order.
func (e *Engine) notify() {
	if e.onChange == nil {
		return
	}
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.onChange(e.Snapshot())
}

// AddVideos appends accepted candidates to the registry.
func (e *Engine) AddVideos(paths []string) project.AddResult {
	e.mu.Lock()
	res := e.proj.AddVideos(paths)
	if len(res.Added) > 0 {
		e.registryRev++
	}
	e.mu.Unlock()

	if len(res.Added) > 0 {
		e.logger.Info("videos added", "count", len(res.Added), "skipped", len(res.Skipped))
		e.notify()
	}
	return res
}

// RemoveVideo removes the video with the given ID, cascading a full
// reset when the registry empties.
func (e *Engine) RemoveVideo(id string) error {
	e.mu.Lock()
	v, ok := e.proj.RemoveVideo(id)
	if ok {
		e.registryRev++
	}
	e.mu.Unlock()

	if !ok {
		return ErrVideoNotFound
	}
	e.logger.Info("video removed", "video_id", id, "path", v.Path)
	e.notify()
	return nil
}

// SetClipName trims and stores a per-video timeline name.
func (e *Engine) SetClipName(id, name string) error {
	e.mu.Lock()
	ok := e.proj.SetCustomName(id, name)
	e.mu.Unlock()

	if !ok {
		return ErrVideoNotFound
	}
	e.notify()
	return nil
}

// SetProjectName replaces the project name.
func (e *Engine) SetProjectName(name string) {
	e.mu.Lock()
	e.proj.SetName(name)
	e.mu.Unlock()
	e.notify()
}

// ResetProject clears the session back to an empty idle project.
func (e *Engine) ResetProject() {
	e.mu.Lock()
	e.proj.Reset()
	e.registryRev++
	e.mu.Unlock()
	e.logger.Info("project reset")
	e.notify()
}

// ToggleSegment flips one segment's keep flag.
func (e *Engine) ToggleSegment(i int) error {
	e.mu.Lock()
	ok := e.proj.ToggleSegment(i)
	e.mu.Unlock()

	if !ok {
		return ErrNoScript
	}
	e.notify()
	return nil
}

// SetFullText replaces the script's narrative text.
func (e *Engine) SetFullText(text string) error {
	e.mu.Lock()
	ok := e.proj.SetFullText(text)
	e.mu.Unlock()

	if !ok {
		return ErrNoScript
	}
	e.notify()
	return nil
}

// Transcribe runs the transcription stage: lifecycle moves to
// transcribing for the duration of the call, and on success the
// result set is replaced wholesale and the lifecycle becomes
// complete. A failed run reverts to idle and leaves any previous
// results untouched. A result arriving after the video set changed
// mid-flight is discarded, never applied.
func (e *Engine) Transcribe(ctx context.Context) error {
	e.mu.Lock()
	if len(e.proj.Videos) == 0 {
		e.mu.Unlock()
		return ErrNoVideos
	}
	if e.proj.State == project.StateTranscribing {
		e.mu.Unlock()
		return ErrTranscriptionInProgress
	}
	e.proj.State = project.StateTranscribing
	e.proj.AppendLog("Starting video transcription")
	rev := e.registryRev
	req := remote.TranscribeRequest{
		ProjectName: e.proj.Name,
		VideoPaths:  e.proj.VideoPaths(),
	}
	names := make([]string, len(e.proj.Videos))
	for i, v := range e.proj.Videos {
		names[i] = v.DisplayName
	}
	e.mu.Unlock()
	e.notify()

	results, err := e.transcriber.Transcribe(ctx, req)

	e.mu.Lock()
	if err != nil {
		if e.registryRev == rev {
			e.proj.State = project.StateIdle
		}
		e.proj.AppendLog(fmt.Sprintf("Transcription failed: %v", err))
		e.mu.Unlock()
		e.logger.Error("transcription failed", "error", err)
		e.notify()
		return err
	}
	if e.registryRev != rev {
		if e.proj.State == project.StateTranscribing {
			e.proj.State = project.StateIdle
		}
		e.proj.AppendLog("Transcription discarded: video set changed")
		e.mu.Unlock()
		e.logger.Warn("transcription result discarded", "reason", "video set changed")
		e.notify()
		return ErrVideoSetChanged
	}

	e.proj.Transcriptions = results
	e.proj.State = project.StateComplete
	for i, t := range results {
		name := fmt.Sprintf("video %d", i+1)
		if i < len(names) {
			name = names[i]
		}
		e.proj.AppendLog(fmt.Sprintf("Transcribed %s (%.1f min, %d segments)", name, t.Duration/60, len(t.Segments)))
	}
	e.proj.AppendLog(fmt.Sprintf("Transcription complete: %d video(s)", len(results)))
	e.mu.Unlock()

	e.logger.Info("transcription complete", "videos", len(results))
	e.notify()
	return nil
}

// GenerateScript runs the script stage. It tracks its own in-flight
// flag instead of a lifecycle state; the flag always clears, success
// or failure. A failed run leaves any previously generated script
// untouched, and a script arriving after the video set changed is
// discarded because its segment video indexes no longer resolve.
func (e *Engine) GenerateScript(ctx context.Context, prompt string, targetMinutes int) error {
	prompt = trimPrompt(prompt)

	e.mu.Lock()
	if prompt == "" {
		e.mu.Unlock()
		return ErrEmptyPrompt
	}
	if len(e.proj.Transcriptions) == 0 {
		e.mu.Unlock()
		return ErrNoTranscriptions
	}
	if e.generating {
		e.mu.Unlock()
		return ErrGenerationInProgress
	}
	if targetMinutes <= 0 {
		targetMinutes = DefaultTargetMinutes
	}
	e.generating = true
	e.proj.AppendLog(fmt.Sprintf("Generating %d-minute script", targetMinutes))
	rev := e.registryRev
	req := remote.GenerateRequest{
		Transcriptions:        append([]project.Transcription(nil), e.proj.Transcriptions...),
		UserPrompt:            prompt,
		TargetDurationMinutes: targetMinutes,
	}
	e.mu.Unlock()
	e.notify()

	script, err := e.scriptGen.Generate(ctx, req)

	e.mu.Lock()
	e.generating = false
	if err != nil {
		e.proj.AppendLog(fmt.Sprintf("Script generation failed: %v", err))
		e.mu.Unlock()
		e.logger.Error("script generation failed", "error", err)
		e.notify()
		return err
	}
	if e.registryRev != rev {
		e.proj.AppendLog("Script discarded: video set changed")
		e.mu.Unlock()
		e.logger.Warn("script discarded", "reason", "video set changed")
		e.notify()
		return ErrVideoSetChanged
	}

	e.proj.Script = script
	e.proj.AppendLog(fmt.Sprintf("Script generated: %d segments", len(script.Segments)))
	e.mu.Unlock()

	e.logger.Info("script generated", "segments", len(script.Segments))
	e.notify()
	return nil
}

// ExportResult is a finished artifact ready for client-side save.
type ExportResult struct {
	Filename string
	Data     []byte
}

// Export serializes the kept segments, in script order, into an
// export request, then retrieves the produced artifact in a second
// call. Failure at either step aborts the remainder; no partial
// artifact is exposed.
func (e *Engine) Export(ctx context.Context) (*ExportResult, error) {
	e.mu.Lock()
	if e.proj.Script == nil {
		e.mu.Unlock()
		return nil, ErrNoScript
	}
	if e.exporting {
		e.mu.Unlock()
		return nil, ErrExportInProgress
	}
	e.exporting = true
	filename := e.proj.Name + ".edl"
	clipNames := make([]string, len(e.proj.Videos))
	for i, v := range e.proj.Videos {
		clipNames[i] = v.ClipName()
	}
	req := remote.ExportRequest{
		Script:      e.proj.Script.Clone(),
		VideoPaths:  e.proj.VideoPaths(),
		ClipNames:   clipNames,
		OutputPath:  filename,
		Format:      remote.FormatEDL,
		FrameRate:   e.fps,
		ProjectName: e.proj.Name,
	}
	e.mu.Unlock()

	artifactID, err := e.exporter.Export(ctx, req)
	if err != nil {
		e.finishExport(fmt.Sprintf("Export failed: %v", err))
		e.logger.Error("export failed", "error", err)
		return nil, err
	}
	e.appendLog(fmt.Sprintf("EDL exported: %s (artifact %s)", filename, artifactID))

	data, err := e.exporter.FetchArtifact(ctx, artifactID)
	if err != nil {
		e.finishExport(fmt.Sprintf("Artifact retrieval failed: %v", err))
		e.logger.Error("artifact retrieval failed", "error", err, "artifact_id", artifactID)
		return nil, err
	}

	e.mu.Lock()
	e.exporting = false
	e.mu.Unlock()

	e.logger.Info("export complete", "filename", filename, "bytes", len(data))
	return &ExportResult{Filename: filename, Data: data}, nil
}

// finishExport clears the in-flight guard and records the outcome.
func (e *Engine) finishExport(message string) {
	e.mu.Lock()
	e.exporting = false
	e.proj.AppendLog(message)
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) appendLog(message string) {
	e.mu.Lock()
	e.proj.AppendLog(message)
	e.mu.Unlock()
	e.notify()
}
