package project

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// AddResult summarizes one AddVideos call.
type AddResult struct {
	Added   []Video
	Skipped []string // rejected candidates (bad extension or duplicate path)
}

// AddVideos filters candidates against the extension allow-list,
// rejects paths already present in the registry, and appends the rest
// preserving input order. While the project name is still the default,
// the name is derived from the first accepted file with its extension
// stripped. Appends one trail entry when anything was accepted.
func (p *Project) AddVideos(paths []string) AddResult {
	var res AddResult

	existing := make(map[string]bool, len(p.Videos))
	for _, v := range p.Videos {
		existing[v.Path] = true
	}

	for _, path := range paths {
		name := filepath.Base(path)
		if !IsVideoFile(name) || existing[path] {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		v := Video{
			ID:          NewID(),
			Path:        path,
			DisplayName: name,
		}
		p.Videos = append(p.Videos, v)
		existing[path] = true
		res.Added = append(res.Added, v)
	}

	if len(res.Added) > 0 {
		if p.Name == DefaultName {
			stem := strings.TrimSuffix(res.Added[0].DisplayName, filepath.Ext(res.Added[0].DisplayName))
			p.Name = stem + "_edit"
		}
		p.AppendLog(fmt.Sprintf("Added %d video file(s)", len(res.Added)))
	}

	return res
}

// RemoveVideo removes the video with the given ID. Removing the last
// video cascades a full reset of derived state: transcriptions and the
// script are dropped and the lifecycle returns to idle, so no derived
// state can reference a video that no longer exists.
func (p *Project) RemoveVideo(id string) (Video, bool) {
	for i, v := range p.Videos {
		if v.ID != id {
			continue
		}
		p.Videos = append(p.Videos[:i], p.Videos[i+1:]...)
		p.AppendLog(fmt.Sprintf("Removed: %s", v.DisplayName))
		if len(p.Videos) == 0 {
			p.resetDerived()
		}
		return v, true
	}
	return Video{}, false
}

// SetCustomName trims and stores a clip name for the video with the
// given ID; an empty result clears it. Not logged.
func (p *Project) SetCustomName(id, name string) bool {
	for i := range p.Videos {
		if p.Videos[i].ID == id {
			p.Videos[i].CustomName = strings.TrimSpace(name)
			return true
		}
	}
	return false
}

// SetName replaces the project name. An empty name falls back to the
// default, matching the original editor behavior.
func (p *Project) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	p.Name = name
}

// Reset clears the whole session back to an empty idle project,
// keeping the trail.
func (p *Project) Reset() {
	p.Videos = nil
	p.Name = DefaultName
	p.resetDerived()
	p.AppendLog("Started new project")
}

func (p *Project) resetDerived() {
	p.Transcriptions = nil
	p.Script = nil
	p.State = StateIdle
}

// AppendLog appends one timestamped entry to the activity trail. The
// trail is append-only and purely observational.
func (p *Project) AppendLog(message string) {
	p.Trail = append(p.Trail, LogEntry{At: time.Now(), Message: message})
}
