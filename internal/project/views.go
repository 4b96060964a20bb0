package project

// SelectedSegments returns the kept segments in script order. Order is
// never re-sorted by time: the exported timeline is whatever order the
// script generator produced.
func (p *Project) SelectedSegments() []ScriptSegment {
	if p.Script == nil {
		return nil
	}
	var kept []ScriptSegment
	for _, s := range p.Script.Segments {
		if s.Keep {
			kept = append(kept, s)
		}
	}
	return kept
}

// SelectedDurationSeconds is the summed source duration of the kept
// segments.
func (p *Project) SelectedDurationSeconds() float64 {
	var total float64
	for _, s := range p.SelectedSegments() {
		total += s.Duration()
	}
	return total
}

// TotalSourceDurationSeconds is the summed duration of all
// transcribed source videos.
func (p *Project) TotalSourceDurationSeconds() float64 {
	var total float64
	for _, t := range p.Transcriptions {
		total += t.Duration
	}
	return total
}

// ToggleSegment flips the keep flag of the segment at index i. It is a
// no-op when no script is loaded or the index is out of range.
func (p *Project) ToggleSegment(i int) bool {
	if p.Script == nil || i < 0 || i >= len(p.Script.Segments) {
		return false
	}
	p.Script.Segments[i].Keep = !p.Script.Segments[i].Keep
	return true
}

// SetFullText replaces the script's narrative text without touching
// segment data. No-op when no script is loaded.
func (p *Project) SetFullText(text string) bool {
	if p.Script == nil {
		return false
	}
	p.Script.FullText = text
	return true
}

// VideoPaths returns the ordered input paths.
func (p *Project) VideoPaths() []string {
	paths := make([]string, len(p.Videos))
	for i, v := range p.Videos {
		paths[i] = v.Path
	}
	return paths
}
