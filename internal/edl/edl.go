// Package edl renders CMX3600-style edit decision lists from a kept
// segment timeline. It is used by the local exporter stub and its
// output is what the agent hands back when no export service is
// configured.
package edl

import (
	"fmt"
	"strings"
)

// Clip is one timeline event: a span of a source video placed at the
// next record position.
type Clip struct {
	ClipName     string
	SourcePath   string
	StartSeconds float64
	EndSeconds   float64
	Content      string
}

// Generate renders clips, in the order given, into an EDL. Record
// timecodes are sequential; source timecodes come from each clip's
// span. fps drives timecode frame math and is clamped to 24 when
// non-positive.
func Generate(clips []Clip, title string, fps int) string {
	if fps <= 0 {
		fps = 24
	}

	lines := []string{
		fmt.Sprintf("TITLE: %s", title),
		"FCM: NON-DROP FRAME",
	}

	var recordOffset float64
	for i, clip := range clips {
		duration := clip.EndSeconds - clip.StartSeconds

		srcIn := Timecode(clip.StartSeconds, fps)
		srcOut := Timecode(clip.EndSeconds, fps)
		recIn := Timecode(recordOffset, fps)
		recOut := Timecode(recordOffset+duration, fps)

		reel := ReelName(clip.SourcePath)
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s AA/V  C        %s %s %s %s", i+1, reel, srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME: %s", clip.ClipName),
		)
		if c := commentLine(clip.Content); c != "" {
			lines = append(lines, fmt.Sprintf("* SEGMENT: %s", c))
		}

		recordOffset += duration
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// Timecode converts seconds to HH:MM:SS:FF. Negative values clamp to
// zero; hours clamp to 23.
func Timecode(seconds float64, fps int) string {
	if seconds < 0 {
		return "00:00:00:00"
	}

	whole := int(seconds)
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60
	frames := int((seconds-float64(whole))*float64(fps) + 0.5)

	// Rounding can push the frame count into the next second.
	if frames >= fps {
		frames = 0
		secs++
		if secs >= 60 {
			secs = 0
			minutes++
			if minutes >= 60 {
				minutes = 0
				hours++
			}
		}
	}
	if hours > 23 {
		hours = 23
	}

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}

// commentLine collapses content to a single line bounded to 60 runes
// for EDL comment fields.
func commentLine(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.ReplaceAll(content, "\r", " ")
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	return content
}
