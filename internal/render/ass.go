package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"clipforge/internal/transcript"
)

// CaptionStyle carries the subtitle layout knobs taken from configuration.
type CaptionStyle struct {
	PlayResX int
	PlayResY int
	FontSize int
	MarginV  int
}

// hookSeconds is how long the hook line stays pinned to the top of the clip.
const hookSeconds = 3

// maxCaptionLineRunes bounds one caption event so lines stay readable on a
// phone screen.
const maxCaptionLineRunes = 42

// BuildCaptions produces an ASS subtitle document for one clip. The localized
// caption is the timed bottom track: it is split into lines and paced evenly
// across the clip. The hook, when present, is a separate top-aligned event
// over the clip opening. Only when no caption text exists do the transcript
// segments overlapping [start, end) take its place, shifted to clip-local
// offsets.
func BuildCaptions(tr transcript.Transcript, start, end time.Duration, hook, caption string, style CaptionStyle) string {
	var b strings.Builder
	b.WriteString(assHeader(style))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	clipLen := end - start
	if hook = strings.TrimSpace(hook); hook != "" {
		hookEnd := hookSeconds * time.Second
		if hookEnd > clipLen {
			hookEnd = clipLen
		}
		writeDialogue(&b, "Hook", 0, hookEnd, hook)
	}

	if caption = strings.TrimSpace(caption); caption != "" {
		lines := splitCaptionLines(caption)
		per := clipLen / time.Duration(len(lines))
		for i, line := range lines {
			lineStart := time.Duration(i) * per
			lineEnd := lineStart + per
			if i == len(lines)-1 {
				lineEnd = clipLen
			}
			writeDialogue(&b, "Caption", lineStart, lineEnd, line)
		}
		return b.String()
	}

	for _, seg := range tr.Segments {
		ss, se := seg.StartTime(), seg.EndTime()
		if se <= start || ss >= end {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if ss < start {
			ss = start
		}
		if se > end {
			se = end
		}
		writeDialogue(&b, "Caption", ss-start, se-start, text)
	}
	return b.String()
}

// splitCaptionLines packs words greedily into display lines.
func splitCaptionLines(caption string) []string {
	words := strings.Fields(caption)
	var lines []string
	var current []string
	length := 0
	for _, word := range words {
		runes := utf8.RuneCountInString(word)
		if length > 0 && length+1+runes > maxCaptionLineRunes {
			lines = append(lines, strings.Join(current, " "))
			current = current[:0]
			length = 0
		}
		if length > 0 {
			length++
		}
		current = append(current, word)
		length += runes
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

func writeDialogue(b *strings.Builder, style string, start, end time.Duration, text string) {
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
		assTime(start), assTime(end), style, sanitizeASS(text))
}

func assHeader(style CaptionStyle) string {
	hookSize := style.FontSize + style.FontSize/4
	return fmt.Sprintf(strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, Inter, %d, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,5,2,2, 60,60,%d,1
Style: Hook, Inter, %d, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,5,2,8, 60,60,%d,1
`)+"\n", style.PlayResX, style.PlayResY, style.FontSize, style.MarginV, hookSize, style.MarginV)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
