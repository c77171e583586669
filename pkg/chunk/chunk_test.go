package chunk_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/chunk"
	"github.com/Sumatoshi-tech/bahn/pkg/textutil"
)

const goSource = `// Package strs has helpers.
package strs

import (
	"strings"
)

// Upper upper-cases s.
func Upper(s string) string {
	return strings.ToUpper(s)
}

func Lower(s string) string {
	return strings.ToLower(s)
}

type Pair struct {
	A, B string
}

func (p *Pair) Swap() {
	p.A, p.B = p.B, p.A
}

var defaultSep = ","
`

const pythonSource = `"""Module doc."""
import os
from typing import List


@cache
def first(x):
    return x


class Box:
    def size(self):
        return 1


if __name__ == "__main__":
    first(1)
`

const rustSource = `use std::fmt;

/// A point.
#[derive(Debug)]
pub struct Point {
    x: i32,
}

impl fmt::Display for Point {
    fn fmt(&self, f: &mut fmt::Formatter<'_>) -> fmt::Result {
        write!(f, "{}", self.x)
    }
}

pub fn origin<'a>() -> Point {
    Point { x: 0 }
}
`

const jsSource = `import { a } from "./a";
import {
  b,
} from "./b";

export function one() {
  return a + "}";
}

export const two = (x) => {
  return x;
};

class Three {
  run() {}
}
`

const cSource = `#include <stdio.h>

static int
counter(void)
{
	return 1;
}

/* Entry point. */
int
main(int argc, char **argv)
{
	return counter();
}

struct node *
make_node(int v)
{
	return 0;
}
`

type summary struct {
	Name     string
	Category chunk.Category
	Start    int
}

func summarize(chunks []chunk.Chunk) []summary {
	out := make([]summary, len(chunks))
	for i, c := range chunks {
		out[i] = summary{Name: c.Name, Category: c.Category, Start: c.Start}
	}

	return out
}

// requireCoverage checks that chunks tile the file without gaps or overlap.
func requireCoverage(t *testing.T, chunks []chunk.Chunk, content string) {
	t.Helper()

	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].Start)
	assert.Equal(t, textutil.CountLines([]byte(content)), chunks[len(chunks)-1].End)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End+1, chunks[i].Start, "chunk %d does not follow chunk %d", i, i-1)
	}
}

func TestChunkFile_Languages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		content string
		want    []summary
	}{
		{
			name:    "go",
			path:    "strs/strs.go",
			content: goSource,
			want: []summary{
				{"imports", chunk.CategoryPreamble, 1},
				{"Upper", chunk.CategoryFunction, 8},
				{"Lower", chunk.CategoryFunction, 13},
				{"Pair", chunk.CategoryTypeDecl, 17},
				{"Pair.Swap", chunk.CategoryFunction, 21},
				{"var defaultSep", chunk.CategoryOther, 25},
			},
		},
		{
			name:    "python",
			path:    "pkg/box.py",
			content: pythonSource,
			want: []summary{
				{"imports", chunk.CategoryPreamble, 1},
				{"first", chunk.CategoryFunction, 6},
				{"Box", chunk.CategoryTypeDecl, 11},
				{"if __name__", chunk.CategoryOther, 16},
			},
		},
		{
			name:    "rust",
			path:    "src/point.rs",
			content: rustSource,
			want: []summary{
				{"imports", chunk.CategoryPreamble, 1},
				{"Point", chunk.CategoryTypeDecl, 3},
				{"impl fmt::Display for Point", chunk.CategoryTypeDecl, 9},
				{"origin", chunk.CategoryFunction, 15},
			},
		},
		{
			name:    "javascript",
			path:    "web/app.js",
			content: jsSource,
			want: []summary{
				{"imports", chunk.CategoryPreamble, 1},
				{"one", chunk.CategoryFunction, 6},
				{"two", chunk.CategoryFunction, 10},
				{"Three", chunk.CategoryTypeDecl, 14},
			},
		},
		{
			name:    "c with return types on their own line",
			path:    "src/main.c",
			content: cSource,
			want: []summary{
				{"imports", chunk.CategoryPreamble, 1},
				{"counter", chunk.CategoryFunction, 3},
				{"main", chunk.CategoryFunction, 9},
				{"make_node", chunk.CategoryFunction, 16},
			},
		},
	}

	chunker := chunk.NewChunker()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file := chunker.ChunkFile(tt.path, []byte(tt.content))

			require.Nil(t, file.ParseErr)
			assert.Equal(t, tt.want, summarize(file.Chunks))
			requireCoverage(t, file.Chunks, tt.content)
		})
	}
}

func TestChunkFile_UnknownLanguageIsOneChunk(t *testing.T) {
	t.Parallel()

	content := "# Title\n\nSome prose.\n"
	file := chunk.NewChunker().ChunkFile("docs/README.md", []byte(content))

	require.Len(t, file.Chunks, 1)
	assert.Equal(t, "README.md", file.Chunks[0].Name)
	assert.Equal(t, chunk.LangUnknown, file.Language)
	requireCoverage(t, file.Chunks, content)
}

func TestChunkFile_UnbalancedFallsBack(t *testing.T) {
	t.Parallel()

	content := "fn broken() {\n    if x {\n        y();\n"
	file := chunk.NewChunker().ChunkFile("src/broken.rs", []byte(content))

	require.NotNil(t, file.ParseErr)
	require.ErrorIs(t, file.ParseErr, chunk.ErrChunkParse)
	require.ErrorIs(t, file.ParseErr, chunk.ErrUnbalanced)
	require.Len(t, file.Chunks, 1)
	requireCoverage(t, file.Chunks, content)
}

func TestChunkFile_Deterministic(t *testing.T) {
	t.Parallel()

	chunker := chunk.NewChunker()

	first := chunker.ChunkFile("strs.go", []byte(goSource))
	second := chunker.ChunkFile("strs.go", []byte(goSource))

	assert.Equal(t, first, second)
}

func TestChunkFile_EmptyContent(t *testing.T) {
	t.Parallel()

	file := chunk.NewChunker().ChunkFile("empty.go", nil)
	assert.Empty(t, file.Chunks)
	assert.Nil(t, file.ParseErr)
}

func TestChunkAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	inputs := make([]chunk.Input, 0, 20)
	for i := range 20 {
		inputs = append(inputs, chunk.Input{Path: fmt.Sprintf("f%02d.go", i), Content: []byte(goSource)})
	}

	files, err := chunk.NewChunker(chunk.WithWorkers(4)).ChunkAll(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, files, len(inputs))

	for i, f := range files {
		assert.Equal(t, inputs[i].Path, f.Path)
		assert.Len(t, f.Chunks, 6)
	}
}

func TestChunkAll_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chunk.NewChunker().ChunkAll(ctx, []chunk.Input{{Path: "a.go", Content: []byte(goSource)}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want chunk.Language
	}{
		{"main.go", chunk.LangGo},
		{"app.py", chunk.LangPython},
		{"lib.rs", chunk.LangRust},
		{"index.ts", chunk.LangTypeScript},
		{"notes.txt", chunk.LangUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, chunk.DetectLanguage(tt.path, []byte("x\n")), tt.path)
	}
}

func TestChunk_Contains(t *testing.T) {
	t.Parallel()

	c := chunk.Chunk{Start: 3, End: 5}
	assert.True(t, c.Contains(3))
	assert.True(t, c.Contains(5))
	assert.False(t, c.Contains(6))
	assert.Equal(t, 3, c.Lines())
}
