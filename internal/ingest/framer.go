package ingest

import "strings"

// DefaultMaxRecordSize bounds a single accumulated record.
const DefaultMaxRecordSize = 1024 * 1024

// Framer joins pretty-printed JSON objects that span several lines back
// into one record. Lines that do not open an object pass straight through.
// A Framer belongs to one stream and is not safe for concurrent use.
type Framer struct {
	maxSize int
	buf     strings.Builder
	depth   int
	open    bool
}

// NewFramer returns a Framer that abandons records larger than maxSize bytes.
func NewFramer(maxSize int) *Framer {
	if maxSize <= 0 {
		maxSize = DefaultMaxRecordSize
	}
	return &Framer{maxSize: maxSize}
}

// Push feeds one line. It returns a complete record and true when the line
// finished one, or "" and false while an object is still open.
func (f *Framer) Push(line string) (string, bool) {
	if !f.open {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") {
			return line, true
		}
		depth := CountJSONDepth(trimmed)
		if depth <= 0 {
			return trimmed, true
		}
		f.open = true
		f.depth = depth
		f.buf.Reset()
		f.buf.WriteString(trimmed)
		return "", false
	}

	f.buf.WriteByte('\n')
	f.buf.WriteString(line)
	f.depth += CountJSONDepth(line)

	if f.depth <= 0 {
		record := strings.TrimSpace(f.buf.String())
		f.Reset()
		return record, true
	}
	if f.buf.Len() > f.maxSize {
		// Unbalanced input; hand back what we have so it is rejected
		// downstream instead of growing without bound.
		record := f.buf.String()
		f.Reset()
		return record, true
	}
	return "", false
}

// Pending reports whether an object is partially accumulated.
func (f *Framer) Pending() bool {
	return f.open
}

// Flush returns any partial record and resets the framer.
func (f *Framer) Flush() (string, bool) {
	if !f.open {
		return "", false
	}
	record := f.buf.String()
	f.Reset()
	return record, true
}

// Reset discards accumulated state.
func (f *Framer) Reset() {
	f.open = false
	f.depth = 0
	f.buf.Reset()
}

// CountJSONDepth counts the net change in JSON nesting depth for a line,
// ignoring brackets inside string literals.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}

		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}

	return depth
}
