package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinary(t *testing.T) {
	t.Parallel()

	atEdge := []byte(strings.Repeat("a", BinarySniffLength))
	atEdge[BinarySniffLength-1] = 0

	pastEdge := []byte(strings.Repeat("a", BinarySniffLength+10))
	pastEdge[BinarySniffLength+5] = 0

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "nil", data: nil, want: false},
		{name: "text", data: []byte("package main\n"), want: false},
		{name: "leading nul", data: []byte("\x00PNG"), want: true},
		{name: "inner nul", data: []byte("ab\x00cd"), want: true},
		{name: "nul at window edge", data: atEdge, want: true},
		{name: "nul past window", data: pastEdge, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, IsBinary(tt.data))
		})
	}
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want int
	}{
		{name: "empty", data: "", want: 0},
		{name: "unterminated", data: "x", want: 1},
		{name: "terminated", data: "x\n", want: 1},
		{name: "mixed", data: "a\nb\nc", want: 3},
		{name: "only newlines", data: "\n\n", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, CountLines([]byte(tt.data)))
			assert.Len(t, SplitLines(tt.data), tt.want)
		})
	}
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single terminated", input: "a\n", want: []string{"a\n"}},
		{name: "no final newline", input: "a\nb", want: []string{"a\n", "b"}},
		{name: "blank lines", input: "\n\n", want: []string{"\n", "\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SplitLines(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, strings.Join(got, ""))
		})
	}
}

func TestTrimEOL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", TrimEOL("abc\r\n"))
	assert.Equal(t, "abc", TrimEOL("abc\n"))
	assert.Equal(t, "abc", TrimEOL("abc"))
}

func TestIsBlank(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank("  x\n"))
}
