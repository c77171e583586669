package chunk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrChunkParse is the sentinel matched by ChunkParseError.
var ErrChunkParse = errors.New("chunk parse failed")

// ChunkParseError reports a file whose structure could not be recovered. The
// file falls back to a single whole-file chunk.
type ChunkParseError struct {
	Path     string
	Language Language
	Err      error
}

func (e *ChunkParseError) Error() string {
	return fmt.Sprintf("chunk %s as %s: %v", e.Path, e.Language, e.Err)
}

// Unwrap returns ErrChunkParse and the underlying cause.
func (e *ChunkParseError) Unwrap() []error { return []error{ErrChunkParse, e.Err} }

// File is the chunked form of one file.
type File struct {
	Path     string
	Language Language
	Chunks   []Chunk
	// ParseErr is set when the profile failed and Chunks is the fallback.
	ParseErr *ChunkParseError
}

// Input is one file to chunk.
type Input struct {
	Path    string
	Content []byte
}

// Chunker splits files into chunks, selecting a profile per language.
type Chunker struct {
	logger  *slog.Logger
	workers int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) { c.logger = logger }
}

// WithWorkers bounds the number of files chunked concurrently.
func WithWorkers(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewChunker creates a Chunker.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{logger: slog.Default(), workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ChunkFile chunks one file. It never fails: profile errors fall back to
// the whole-file chunk and are reported in File.ParseErr.
func (c *Chunker) ChunkFile(filePath string, content []byte) File {
	lang := DetectLanguage(filePath, content)
	src := NewSource(filePath, content)
	file := File{Path: filePath, Language: lang}

	chunks, err := Split(src, ProfileFor(lang))
	if err != nil {
		file.ParseErr = &ChunkParseError{Path: filePath, Language: lang, Err: err}
		c.logger.Warn("falling back to whole-file chunk", "path", filePath, "language", string(lang), "error", err)

		chunks, _ = Split(src, identityProfile{})
	}

	file.Chunks = chunks

	return file
}

// ChunkAll chunks files concurrently. The result is index-aligned with in.
func (c *Chunker) ChunkAll(ctx context.Context, in []Input) ([]File, error) {
	out := make([]File, len(in))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(c.workers)

	for i, input := range in {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("chunk %s: %w", input.Path, err)
			}

			out[i] = c.ChunkFile(input.Path, input.Content)

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return out, nil
}
