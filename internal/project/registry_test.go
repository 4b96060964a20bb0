package project

import (
	"strings"
	"testing"
)

func TestAddVideos_FiltersAndDeduplicates(t *testing.T) {
	p := New()

	res := p.AddVideos([]string{"/media/intro.mp4", "/media/notes.txt", "/media/intro.mp4", "/media/b.mov"})

	if len(res.Added) != 2 {
		t.Fatalf("added = %d, want 2", len(res.Added))
	}
	if len(p.Videos) != 2 {
		t.Fatalf("registry size = %d, want 2", len(p.Videos))
	}
	if p.Videos[0].Path != "/media/intro.mp4" || p.Videos[1].Path != "/media/b.mov" {
		t.Errorf("order not preserved: %+v", p.Videos)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("skipped = %v, want 2 entries", res.Skipped)
	}
}

func TestAddVideos_DuplicateAcrossCalls(t *testing.T) {
	p := New()

	p.AddVideos([]string{"/media/intro.mp4"})
	res := p.AddVideos([]string{"/media/intro.mp4"})

	if len(res.Added) != 0 {
		t.Errorf("added = %d, want 0", len(res.Added))
	}
	if len(p.Videos) != 1 {
		t.Errorf("registry size = %d, want 1", len(p.Videos))
	}
}

func TestAddVideos_DerivesProjectName(t *testing.T) {
	p := New()

	p.AddVideos([]string{"/media/intro.mp4"})

	if p.Name != "intro_edit" {
		t.Errorf("name = %q, want %q", p.Name, "intro_edit")
	}

	// A later add must not overwrite the derived name.
	p.AddVideos([]string{"/media/outro.mp4"})
	if p.Name != "intro_edit" {
		t.Errorf("name after second add = %q, want %q", p.Name, "intro_edit")
	}
}

func TestAddVideos_KeepsExplicitName(t *testing.T) {
	p := New()
	p.SetName("My Cut")

	p.AddVideos([]string{"/media/intro.mp4"})

	if p.Name != "My Cut" {
		t.Errorf("name = %q, want %q", p.Name, "My Cut")
	}
}

func TestAddVideos_PathIsCaseSensitiveKey(t *testing.T) {
	p := New()

	p.AddVideos([]string{"/media/Intro.mp4", "/media/intro.mp4"})

	if len(p.Videos) != 2 {
		t.Errorf("registry size = %d, want 2 (exact-match dedup)", len(p.Videos))
	}
}

func TestAddVideos_StableIDs(t *testing.T) {
	p := New()
	res := p.AddVideos([]string{"/a.mp4", "/b.mp4"})

	if res.Added[0].ID == "" || res.Added[0].ID == res.Added[1].ID {
		t.Errorf("ids not unique: %q vs %q", res.Added[0].ID, res.Added[1].ID)
	}
}

func TestRemoveVideo_LastVideoCascadesReset(t *testing.T) {
	p := New()
	res := p.AddVideos([]string{"/media/intro.mp4"})
	p.Transcriptions = []Transcription{{Duration: 60}}
	p.Script = &Script{Title: "t"}
	p.State = StateComplete

	if _, ok := p.RemoveVideo(res.Added[0].ID); !ok {
		t.Fatal("remove failed")
	}

	if len(p.Transcriptions) != 0 {
		t.Errorf("transcriptions not cleared: %d", len(p.Transcriptions))
	}
	if p.Script != nil {
		t.Error("script not cleared")
	}
	if p.State != StateIdle {
		t.Errorf("state = %q, want idle", p.State)
	}
}

func TestRemoveVideo_NonLastKeepsDerivedState(t *testing.T) {
	p := New()
	res := p.AddVideos([]string{"/a.mp4", "/b.mp4"})
	p.Transcriptions = []Transcription{{Duration: 10}, {Duration: 20}}
	p.State = StateComplete

	p.RemoveVideo(res.Added[0].ID)

	if p.State != StateComplete {
		t.Errorf("state = %q, want complete", p.State)
	}
	if len(p.Videos) != 1 || p.Videos[0].Path != "/b.mp4" {
		t.Errorf("unexpected registry: %+v", p.Videos)
	}
}

func TestRemoveVideo_UnknownID(t *testing.T) {
	p := New()
	p.AddVideos([]string{"/a.mp4"})

	if _, ok := p.RemoveVideo("nope"); ok {
		t.Error("expected remove of unknown id to fail")
	}
	if len(p.Videos) != 1 {
		t.Errorf("registry size = %d, want 1", len(p.Videos))
	}
}

func TestSetCustomName_TrimAndClear(t *testing.T) {
	p := New()
	res := p.AddVideos([]string{"/a.mp4"})
	id := res.Added[0].ID

	p.SetCustomName(id, "  Wide Cam  ")
	if p.Videos[0].CustomName != "Wide Cam" {
		t.Errorf("custom name = %q, want %q", p.Videos[0].CustomName, "Wide Cam")
	}
	if p.Videos[0].ClipName() != "Wide Cam" {
		t.Errorf("clip name = %q, want %q", p.Videos[0].ClipName(), "Wide Cam")
	}

	p.SetCustomName(id, "   ")
	if p.Videos[0].CustomName != "" {
		t.Errorf("custom name not cleared: %q", p.Videos[0].CustomName)
	}
	if p.Videos[0].ClipName() != "a.mp4" {
		t.Errorf("clip name = %q, want filename fallback", p.Videos[0].ClipName())
	}
}

func TestSetCustomName_NotLogged(t *testing.T) {
	p := New()
	res := p.AddVideos([]string{"/a.mp4"})
	before := len(p.Trail)

	p.SetCustomName(res.Added[0].ID, "Cam A")

	if len(p.Trail) != before {
		t.Errorf("trail grew from %d to %d", before, len(p.Trail))
	}
}

func TestTrail_AppendOnly(t *testing.T) {
	p := New()
	p.AddVideos([]string{"/a.mp4"})
	first := p.Trail[0].Message

	p.AppendLog("second")

	if p.Trail[0].Message != first {
		t.Error("existing trail entry mutated")
	}
	if len(p.Trail) != 2 {
		t.Errorf("trail length = %d, want 2", len(p.Trail))
	}
	if p.Trail[0].At.IsZero() || p.Trail[1].At.IsZero() {
		t.Error("trail entries must be timestamped")
	}
	if !strings.Contains(first, "1 video") {
		t.Errorf("add entry = %q, want count summary", first)
	}
}

func TestIsVideoFile(t *testing.T) {
	cases := map[string]bool{
		"a.mp4":  true,
		"a.MOV":  true,
		"a.webm": true,
		"a.txt":  false,
		"a":      false,
		"a.mp3":  false,
	}
	for name, want := range cases {
		if got := IsVideoFile(name); got != want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestReset_ClearsEverythingButTrail(t *testing.T) {
	p := New()
	p.AddVideos([]string{"/a.mp4"})
	p.Transcriptions = []Transcription{{Duration: 5}}
	p.Script = &Script{}
	p.State = StateComplete

	p.Reset()

	if len(p.Videos) != 0 || p.Transcriptions != nil || p.Script != nil {
		t.Error("reset left derived state behind")
	}
	if p.Name != DefaultName {
		t.Errorf("name = %q, want default", p.Name)
	}
	if p.State != StateIdle {
		t.Errorf("state = %q, want idle", p.State)
	}
	if len(p.Trail) == 0 {
		t.Error("trail should survive reset")
	}
}
