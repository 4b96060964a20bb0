package project

// Clone returns a deep copy of the project, safe to hand across
// goroutine boundaries while the original keeps mutating.
func (p *Project) Clone() *Project {
	c := &Project{
		Name:  p.Name,
		State: p.State,
	}
	if p.Videos != nil {
		c.Videos = append([]Video(nil), p.Videos...)
	}
	if p.Transcriptions != nil {
		c.Transcriptions = make([]Transcription, len(p.Transcriptions))
		for i, t := range p.Transcriptions {
			c.Transcriptions[i] = Transcription{
				Segments: append([]TranscriptSegment(nil), t.Segments...),
				Duration: t.Duration,
			}
		}
	}
	if p.Script != nil {
		c.Script = p.Script.Clone()
	}
	if p.Trail != nil {
		c.Trail = append([]LogEntry(nil), p.Trail...)
	}
	return c
}

// Clone returns a deep copy of the script.
func (s *Script) Clone() *Script {
	c := *s
	c.Segments = append([]ScriptSegment(nil), s.Segments...)
	return &c
}
