package source

import "fmt"

// Span is a byte range [Start, End) of one file. Stub nodes carry only a
// line and column, so scanners build spans from SpanAt and rarely widen them.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover widens s over other. Spans of different files leave s as is.
func (s Span) Cover(other Span) Span {
	if s.File == other.File {
		s.Start = min(s.Start, other.Start)
		s.End = max(s.End, other.End)
	}
	return s
}

// Len is the byte length of s.
func (s Span) Len() uint32 { return s.End - s.Start }
