// Package textutil provides byte-level text utilities: binary detection,
// line counting, and line splitting that preserves terminators.
package textutil

import (
	"bytes"
	"strings"
)

// BinarySniffLength is how far IsBinary looks for a NUL byte, the same
// window git uses.
const BinarySniffLength = 8000

// IsBinary reports whether the head of data contains a NUL byte. Such files
// are never split below file level.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data[:min(len(data), BinarySniffLength)], 0) >= 0
}

// CountLines returns the number of lines in data, counting an
// unterminated last line.
func CountLines(data []byte) int {
	n := bytes.Count(data, []byte{'\n'})

	if len(data) > 0 && !bytes.HasSuffix(data, []byte{'\n'}) {
		n++
	}

	return n
}

// SplitLines splits text into lines, keeping the trailing newline on each
// line. A final line without a newline is returned as is. Joining the result
// reproduces the input byte for byte.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// TrimEOL returns line without its trailing "\n" or "\r\n".
func TrimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")

	return strings.TrimSuffix(line, "\r")
}

// IsBlank reports whether line holds only whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
