package chat

import (
	"strings"

	"github.com/atotto/clipboard"
)

const codeFence = "```"

// SegmentKind tags a Segment as prose or code.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentCode
)

// Segment is one alternating prose/code region of a response. Language is
// only set for code segments and may be empty when the fence carried no tag.
type Segment struct {
	Kind     SegmentKind
	Language string
	Value    string
}

// Split cuts a response on triple-backtick fences into alternating
// prose/code segments. Even fence positions are prose, odd positions are
// code. An unterminated trailing fence still yields a code segment so a
// block can render progressively while it is streaming in.
func Split(text string) []Segment {
	parts := strings.Split(text, codeFence)
	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if i%2 == 0 {
			if part == "" {
				continue
			}
			segments = append(segments, Segment{Kind: SegmentText, Value: part})
			continue
		}
		language, body := splitCodeBlock(part)
		segments = append(segments, Segment{Kind: SegmentCode, Language: language, Value: body})
	}
	return segments
}

// splitCodeBlock treats everything up to the first line break as the
// optional language tag and trims blank lines around the body.
func splitCodeBlock(block string) (language, body string) {
	if idx := strings.IndexByte(block, '\n'); idx >= 0 {
		tag := strings.TrimSpace(block[:idx])
		if tag != "" && !strings.ContainsAny(tag, " \t") {
			return tag, strings.Trim(block[idx+1:], "\n")
		}
		return "", strings.Trim(block, "\n")
	}
	return "", strings.Trim(block, "\n")
}

// CodeSegments returns the code segments of text in order, for
// position-addressed copy/apply actions.
func CodeSegments(text string) []Segment {
	var code []Segment
	for _, seg := range Split(text) {
		if seg.Kind == SegmentCode {
			code = append(code, seg)
		}
	}
	return code
}

// CopySegment places a code segment's body on the system clipboard. It
// silently no-ops when no clipboard is available.
func CopySegment(seg Segment) {
	_ = clipboard.WriteAll(seg.Value)
}

// ApplySegment hands a code segment's body to the editor collaborator.
type ApplyFunc func(code string) error

func ApplySegment(seg Segment, apply ApplyFunc) error {
	if apply == nil {
		return nil
	}
	return apply(seg.Value)
}
