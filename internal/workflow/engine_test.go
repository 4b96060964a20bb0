package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cutroom/cutroom-agent/internal/project"
	"github.com/cutroom/cutroom-agent/internal/remote"
)

type fakeTranscriber struct {
	fn func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
	return f.fn(ctx, req)
}

type fakeGenerator struct {
	fn func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
	return f.fn(ctx, req)
}

type fakeExporter struct {
	exportFn func(ctx context.Context, req remote.ExportRequest) (string, error)
	fetchFn  func(ctx context.Context, artifactID string) ([]byte, error)
}

func (f *fakeExporter) Export(ctx context.Context, req remote.ExportRequest) (string, error) {
	return f.exportFn(ctx, req)
}

func (f *fakeExporter) FetchArtifact(ctx context.Context, artifactID string) ([]byte, error) {
	return f.fetchFn(ctx, artifactID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oneResult(duration float64) []project.Transcription {
	return []project.Transcription{{
		Segments: []project.TranscriptSegment{{Start: 0, End: duration, Text: "hi"}},
		Duration: duration,
	}}
}

func newTestEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	if cfg.Transcriber == nil {
		cfg.Transcriber = &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			results := make([]project.Transcription, len(req.VideoPaths))
			for i := range results {
				results[i] = project.Transcription{Duration: 60}
			}
			return results, nil
		}}
	}
	if cfg.ScriptGenerator == nil {
		cfg.ScriptGenerator = &fakeGenerator{fn: func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
			return &project.Script{Title: "cut", Segments: []project.ScriptSegment{{StartTime: 0, EndTime: 5, Keep: true}}}, nil
		}}
	}
	if cfg.Exporter == nil {
		cfg.Exporter = &fakeExporter{
			exportFn: func(ctx context.Context, req remote.ExportRequest) (string, error) { return "art-1", nil },
			fetchFn:  func(ctx context.Context, artifactID string) ([]byte, error) { return []byte("TITLE: x\n"), nil },
		}
	}
	return NewEngine(cfg)
}

func trailMessages(p *project.Project) []string {
	msgs := make([]string, len(p.Trail))
	for i, e := range p.Trail {
		msgs[i] = e.Message
	}
	return msgs
}

func countContaining(msgs []string, substr string) int {
	var n int
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

func TestTranscribe_RequiresVideos(t *testing.T) {
	e := newTestEngine(Config{})
	if err := e.Transcribe(context.Background()); !errors.Is(err, ErrNoVideos) {
		t.Errorf("err = %v, want ErrNoVideos", err)
	}
}

func TestTranscribe_Success(t *testing.T) {
	e := newTestEngine(Config{})
	e.AddVideos([]string{"/media/intro.mp4", "/media/outro.mp4"})

	if err := e.Transcribe(context.Background()); err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	p := e.Snapshot()
	if p.State != project.StateComplete {
		t.Errorf("state = %q, want complete", p.State)
	}
	if len(p.Transcriptions) != 2 {
		t.Errorf("transcriptions = %d, want 2", len(p.Transcriptions))
	}

	msgs := trailMessages(p)
	if countContaining(msgs, "Starting video transcription") != 1 {
		t.Errorf("missing start entry: %v", msgs)
	}
	if countContaining(msgs, "Transcribed intro.mp4") != 1 {
		t.Errorf("missing per-video entry: %v", msgs)
	}
	if countContaining(msgs, "Transcription complete: 2 video(s)") != 1 {
		t.Errorf("missing summary entry: %v", msgs)
	}
}

func TestTranscribe_ReplacesResultsWholesale(t *testing.T) {
	calls := 0
	e := newTestEngine(Config{
		Transcriber: &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			calls++
			return oneResult(float64(calls * 10)), nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})

	e.Transcribe(context.Background())
	e.Transcribe(context.Background())

	p := e.Snapshot()
	if len(p.Transcriptions) != 1 {
		t.Fatalf("transcriptions = %d, want 1 (replaced, not appended)", len(p.Transcriptions))
	}
	if p.Transcriptions[0].Duration != 20 {
		t.Errorf("duration = %v, want result of second run", p.Transcriptions[0].Duration)
	}
}

func TestTranscribe_FailureKeepsPriorResults(t *testing.T) {
	fail := false
	e := newTestEngine(Config{
		Transcriber: &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			if fail {
				return nil, errors.New("timeout")
			}
			return oneResult(30), nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})

	if err := e.Transcribe(context.Background()); err != nil {
		t.Fatalf("first transcribe: %v", err)
	}

	fail = true
	if err := e.Transcribe(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	p := e.Snapshot()
	if p.State != project.StateIdle {
		t.Errorf("state = %q, want idle after failure", p.State)
	}
	if len(p.Transcriptions) != 1 || p.Transcriptions[0].Duration != 30 {
		t.Errorf("prior results lost: %+v", p.Transcriptions)
	}
	if n := countContaining(trailMessages(p), "timeout"); n != 1 {
		t.Errorf("trail has %d failure entries, want exactly 1: %v", n, trailMessages(p))
	}
}

func TestTranscribe_BusyGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once
	e := newTestEngine(Config{
		Transcriber: &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			enteredOnce.Do(func() { close(entered) })
			<-release
			return oneResult(10), nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})

	done := make(chan error, 1)
	go func() { done <- e.Transcribe(context.Background()) }()

	<-entered
	if err := e.Transcribe(context.Background()); !errors.Is(err, ErrTranscriptionInProgress) {
		t.Errorf("concurrent call err = %v, want ErrTranscriptionInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Guard releases once the stage finishes.
	if err := e.Transcribe(context.Background()); err != nil {
		t.Errorf("follow-up transcribe: %v", err)
	}
}

func TestTranscribe_RemoveLastVideoMidFlightDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e := newTestEngine(Config{
		Transcriber: &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			close(entered)
			<-release
			return oneResult(10), nil
		}},
	})
	res := e.AddVideos([]string{"/a.mp4"})

	done := make(chan error, 1)
	go func() { done <- e.Transcribe(context.Background()) }()

	<-entered
	if err := e.RemoveVideo(res.Added[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// Cascade reset has already run.
	p := e.Snapshot()
	if p.State != project.StateIdle || len(p.Transcriptions) != 0 {
		t.Fatalf("reset did not cascade: state=%q transcriptions=%d", p.State, len(p.Transcriptions))
	}

	close(release)
	if err := <-done; !errors.Is(err, ErrVideoSetChanged) {
		t.Fatalf("err = %v, want ErrVideoSetChanged", err)
	}

	// The late success must not resurrect derived state.
	p = e.Snapshot()
	if len(p.Videos) != 0 {
		t.Errorf("videos = %d, want 0", len(p.Videos))
	}
	if len(p.Transcriptions) != 0 {
		t.Errorf("stale transcriptions applied: %d", len(p.Transcriptions))
	}
	if p.State != project.StateIdle {
		t.Errorf("state = %q, want idle", p.State)
	}
	if countContaining(trailMessages(p), "Transcription discarded") != 1 {
		t.Errorf("trail = %v", trailMessages(p))
	}
}

func TestTranscribe_AddVideoMidFlightDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e := newTestEngine(Config{
		Transcriber: &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			close(entered)
			<-release
			return oneResult(10), nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})

	done := make(chan error, 1)
	go func() { done <- e.Transcribe(context.Background()) }()

	<-entered
	e.AddVideos([]string{"/b.mp4"})
	close(release)

	if err := <-done; !errors.Is(err, ErrVideoSetChanged) {
		t.Fatalf("err = %v, want ErrVideoSetChanged", err)
	}

	// The one-entry result no longer aligns with the two-video
	// registry, so nothing may be applied.
	p := e.Snapshot()
	if len(p.Transcriptions) != 0 {
		t.Errorf("misaligned result applied: %d", len(p.Transcriptions))
	}
	if p.State != project.StateIdle {
		t.Errorf("state = %q, want idle", p.State)
	}
}

func TestGenerateScript_VideoSetChangeMidFlightDiscardsScript(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e := newTestEngine(Config{
		ScriptGenerator: &fakeGenerator{fn: func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
			close(entered)
			<-release
			return &project.Script{Title: "late"}, nil
		}},
	})
	res := e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.GenerateScript(context.Background(), "cut", 5) }()

	<-entered
	if err := e.RemoveVideo(res.Added[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrVideoSetChanged) {
		t.Fatalf("err = %v, want ErrVideoSetChanged", err)
	}

	p := e.Snapshot()
	if p.Script != nil {
		t.Errorf("stale script applied: %+v", p.Script)
	}
	if e.Generating() {
		t.Error("in-flight flag stuck after discard")
	}
	if countContaining(trailMessages(p), "Script discarded") != 1 {
		t.Errorf("trail = %v", trailMessages(p))
	}
}

func TestGenerateScript_Gating(t *testing.T) {
	e := newTestEngine(Config{})
	ctx := context.Background()

	if err := e.GenerateScript(ctx, "   ", 5); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("whitespace prompt err = %v", err)
	}
	if err := e.GenerateScript(ctx, "make it punchy", 5); !errors.Is(err, ErrNoTranscriptions) {
		t.Errorf("no-transcriptions err = %v", err)
	}
}

func TestGenerateScript_DefaultTarget(t *testing.T) {
	var gotTarget int
	e := newTestEngine(Config{
		ScriptGenerator: &fakeGenerator{fn: func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
			gotTarget = req.TargetDurationMinutes
			return &project.Script{}, nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())

	if err := e.GenerateScript(context.Background(), "cut it", 0); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotTarget != DefaultTargetMinutes {
		t.Errorf("target = %d, want %d", gotTarget, DefaultTargetMinutes)
	}
}

func TestGenerateScript_FailureKeepsPriorScript(t *testing.T) {
	fail := false
	e := newTestEngine(Config{
		ScriptGenerator: &fakeGenerator{fn: func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
			if fail {
				return nil, errors.New("model error")
			}
			return &project.Script{Title: "first"}, nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())

	if err := e.GenerateScript(context.Background(), "cut", 5); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	fail = true
	if err := e.GenerateScript(context.Background(), "cut again", 5); err == nil {
		t.Fatal("expected failure")
	}

	p := e.Snapshot()
	if p.Script == nil || p.Script.Title != "first" {
		t.Errorf("prior script lost: %+v", p.Script)
	}
	if e.Generating() {
		t.Error("in-flight flag stuck after failure")
	}
	if countContaining(trailMessages(p), "Script generation failed") != 1 {
		t.Errorf("trail = %v", trailMessages(p))
	}
}

func TestGenerateScript_DoesNotTouchLifecycleState(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e := newTestEngine(Config{
		ScriptGenerator: &fakeGenerator{fn: func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
			close(entered)
			<-release
			return &project.Script{}, nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.GenerateScript(context.Background(), "cut", 5) }()

	<-entered
	st := e.Status()
	if !st.Generating {
		t.Error("generating flag not visible while in flight")
	}
	if st.State != project.StateComplete {
		t.Errorf("state = %q while generating, want complete", st.State)
	}
	if err := e.GenerateScript(context.Background(), "again", 5); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("concurrent generate err = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("generate: %v", err)
	}
	if e.Generating() {
		t.Error("flag not cleared after completion")
	}
}

func TestExport_RequiresScript(t *testing.T) {
	e := newTestEngine(Config{})
	if _, err := e.Export(context.Background()); !errors.Is(err, ErrNoScript) {
		t.Errorf("err = %v, want ErrNoScript", err)
	}
}

func TestExport_RequestShape(t *testing.T) {
	var got remote.ExportRequest
	e := newTestEngine(Config{
		Exporter: &fakeExporter{
			exportFn: func(ctx context.Context, req remote.ExportRequest) (string, error) {
				got = req
				return "art-1", nil
			},
			fetchFn: func(ctx context.Context, id string) ([]byte, error) { return []byte("edl"), nil },
		},
		ExportFPS: 30,
	})
	res := e.AddVideos([]string{"/media/intro.mp4", "/media/b.mp4"})
	e.SetClipName(res.Added[1].ID, "Cam B")
	e.Transcribe(context.Background())
	e.GenerateScript(context.Background(), "cut", 5)

	out, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if out.Filename != "intro_edit.edl" {
		t.Errorf("filename = %q", out.Filename)
	}
	if string(out.Data) != "edl" {
		t.Errorf("data = %q", out.Data)
	}
	if got.Format != remote.FormatEDL || got.FrameRate != 30 {
		t.Errorf("format/fps = %q/%d", got.Format, got.FrameRate)
	}
	if len(got.ClipNames) != 2 || got.ClipNames[0] != "intro.mp4" || got.ClipNames[1] != "Cam B" {
		t.Errorf("clip names = %v", got.ClipNames)
	}
	if got.Script == nil || len(got.Script.Segments) == 0 {
		t.Error("script missing from request")
	}

	msgs := trailMessages(e.Snapshot())
	if countContaining(msgs, "EDL exported: intro_edit.edl") != 1 {
		t.Errorf("trail = %v", msgs)
	}
}

func TestExport_FetchFailureAborts(t *testing.T) {
	e := newTestEngine(Config{
		Exporter: &fakeExporter{
			exportFn: func(ctx context.Context, req remote.ExportRequest) (string, error) { return "art-1", nil },
			fetchFn: func(ctx context.Context, id string) ([]byte, error) {
				return nil, errors.New("artifact expired")
			},
		},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())
	e.GenerateScript(context.Background(), "cut", 5)

	if _, err := e.Export(context.Background()); err == nil {
		t.Fatal("expected fetch failure to surface")
	}

	msgs := trailMessages(e.Snapshot())
	if countContaining(msgs, "Artifact retrieval failed") != 1 {
		t.Errorf("trail = %v", msgs)
	}

	// Guard must release so a retry is possible.
	if _, err := e.Export(context.Background()); err == nil {
		t.Fatal("retry should still hit the failing fetch")
	}
}

func TestExport_BusyDuringRetrieval(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	e := newTestEngine(Config{
		Exporter: &fakeExporter{
			exportFn: func(ctx context.Context, req remote.ExportRequest) (string, error) { return "art-1", nil },
			fetchFn: func(ctx context.Context, id string) ([]byte, error) {
				close(entered)
				<-release
				return []byte("edl"), nil
			},
		},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())
	e.GenerateScript(context.Background(), "cut", 5)

	done := make(chan error, 1)
	go func() {
		_, err := e.Export(context.Background())
		done <- err
	}()

	<-entered
	if _, err := e.Export(context.Background()); !errors.Is(err, ErrExportInProgress) {
		t.Errorf("concurrent export err = %v, want ErrExportInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("export: %v", err)
	}
}

func TestExport_CallFailureRecordsAndReleases(t *testing.T) {
	fail := true
	e := newTestEngine(Config{
		Exporter: &fakeExporter{
			exportFn: func(ctx context.Context, req remote.ExportRequest) (string, error) {
				if fail {
					return "", errors.New("render queue full")
				}
				return "art-1", nil
			},
			fetchFn: func(ctx context.Context, id string) ([]byte, error) { return []byte("edl"), nil },
		},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())
	e.GenerateScript(context.Background(), "cut", 5)

	if _, err := e.Export(context.Background()); err == nil {
		t.Fatal("expected export failure")
	}
	if countContaining(trailMessages(e.Snapshot()), "Export failed") != 1 {
		t.Errorf("trail = %v", trailMessages(e.Snapshot()))
	}

	fail = false
	if _, err := e.Export(context.Background()); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestStatus_RecomputedPerCall(t *testing.T) {
	e := newTestEngine(Config{
		ScriptGenerator: &fakeGenerator{fn: func(ctx context.Context, req remote.GenerateRequest) (*project.Script, error) {
			return &project.Script{Segments: []project.ScriptSegment{
				{StartTime: 0, EndTime: 5, Keep: true},
				{StartTime: 10, EndTime: 20, Keep: true},
			}}, nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})
	e.Transcribe(context.Background())
	e.GenerateScript(context.Background(), "cut", 5)

	st := e.Status()
	if st.SelectedCount != 2 || st.SelectedDurationS != 15 {
		t.Errorf("status = %+v", st)
	}

	e.ToggleSegment(1)
	st = e.Status()
	if st.SelectedCount != 1 || st.SelectedDurationS != 5 {
		t.Errorf("status after toggle = %+v", st)
	}
	if st.SegmentCount != 2 {
		t.Errorf("segment count = %d, want 2", st.SegmentCount)
	}
}

func TestOnChange_SerializedAndOrdered(t *testing.T) {
	var inFlight int32
	lastTrail := 0
	e := newTestEngine(Config{
		OnChange: func(p *project.Project) {
			if atomic.AddInt32(&inFlight, 1) != 1 {
				t.Error("concurrent snapshot delivery")
			}
			if len(p.Trail) < lastTrail {
				t.Errorf("snapshot out of order: trail %d after %d", len(p.Trail), lastTrail)
			}
			lastTrail = len(p.Trail)
			atomic.AddInt32(&inFlight, -1)
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e.AddVideos([]string{fmt.Sprintf("/clip%d.mp4", n)})
			e.ResetProject()
		}(i)
	}
	wg.Wait()
}

func TestOnChange_ReceivesIsolatedSnapshots(t *testing.T) {
	var last *project.Project
	e := newTestEngine(Config{
		OnChange: func(p *project.Project) { last = p },
	})
	e.AddVideos([]string{"/a.mp4"})

	if last == nil {
		t.Fatal("hook never fired")
	}
	last.Name = "mutated"
	if e.Snapshot().Name == "mutated" {
		t.Error("hook snapshot shares state with the engine")
	}
}

func TestLoad_ResetsInterruptedTranscription(t *testing.T) {
	e := newTestEngine(Config{})
	p := project.New()
	p.State = project.StateTranscribing
	p.AddVideos([]string{"/a.mp4"})

	e.Load(p)

	st := e.Status()
	if st.State != project.StateIdle {
		t.Errorf("state = %q, want idle after resume", st.State)
	}
	if st.VideoCount != 1 {
		t.Errorf("video count = %d, want 1", st.VideoCount)
	}
}

func TestRemoveVideo_UnknownIDError(t *testing.T) {
	e := newTestEngine(Config{})
	if err := e.RemoveVideo("nope"); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("err = %v, want ErrVideoNotFound", err)
	}
}

func TestBusyGuard_TimeBounded(t *testing.T) {
	// Regression guard: stage calls must not hold the engine lock
	// across the network round trip, or Status would block here.
	block := make(chan struct{})
	e := newTestEngine(Config{
		Transcriber: &fakeTranscriber{fn: func(ctx context.Context, req remote.TranscribeRequest) ([]project.Transcription, error) {
			<-block
			return oneResult(1), nil
		}},
	})
	e.AddVideos([]string{"/a.mp4"})

	go e.Transcribe(context.Background())

	statusDone := make(chan Status, 1)
	go func() { statusDone <- e.Status() }()

	select {
	case <-statusDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Status blocked while a stage call was in flight")
	}
	close(block)
}
