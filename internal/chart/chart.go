// Package chart transposes whole documents, one line at a time.
package chart

import (
	"context"
	"strings"

	"github.com/FocuswithJustin/chordshift/core/transpose"
	"github.com/FocuswithJustin/chordshift/internal/workerpool"
)

// DefaultParallelThreshold is the line count above which Transposer fans
// lines out over a worker pool.
const DefaultParallelThreshold = 2000

// Result is a transposed document.
type Result struct {
	Text   string `json:"text"`
	Lines  int    `json:"lines"`
	Tokens int    `json:"tokens"`
}

// Transposer transposes documents line by line. The zero value is ready to
// use and runs sequentially below DefaultParallelThreshold lines.
type Transposer struct {
	// ParallelThreshold overrides DefaultParallelThreshold; negative disables
	// the worker pool entirely.
	ParallelThreshold int
	// Workers caps the pool size; 0 means workerpool.MaxWorkers.
	Workers int
}

// Transpose splits text on "\n", transposes each line and rejoins them.
func Transpose(text string, req transpose.Request) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = req.Line(line)
	}
	return strings.Join(lines, "\n")
}

// Transpose transposes text, honouring ctx cancellation between lines.
// Line i of the output always corresponds to line i of the input.
func (t *Transposer) Transpose(ctx context.Context, text string, req transpose.Request) (*Result, error) {
	lines := strings.Split(text, "\n")

	var tokens int
	var err error
	if t.parallel(len(lines)) {
		tokens, err = t.transposeParallel(ctx, lines, req)
	} else {
		tokens, err = transposeSequential(ctx, lines, req)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:   strings.Join(lines, "\n"),
		Lines:  len(lines),
		Tokens: tokens,
	}, nil
}

func (t *Transposer) parallel(n int) bool {
	threshold := t.ParallelThreshold
	if threshold == 0 {
		threshold = DefaultParallelThreshold
	}
	return threshold > 0 && n > threshold
}

func transposeSequential(ctx context.Context, lines []string, req transpose.Request) (int, error) {
	tokens := 0
	for i, line := range lines {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		tokens += len(transpose.Tokenize(line))
		lines[i] = req.Line(line)
	}
	return tokens, nil
}

type lineJob struct {
	index int
	text  string
}

type lineResult struct {
	index  int
	text   string
	tokens int
}

func (t *Transposer) transposeParallel(ctx context.Context, lines []string, req transpose.Request) (int, error) {
	pool := workerpool.New[lineJob, lineResult](t.Workers, len(lines))
	pool.Start(func(j lineJob) lineResult {
		if ctx.Err() != nil {
			return lineResult{index: j.index, text: j.text}
		}
		return lineResult{
			index:  j.index,
			text:   req.Line(j.text),
			tokens: len(transpose.Tokenize(j.text)),
		}
	})

	for i, line := range lines {
		pool.Submit(lineJob{index: i, text: line})
	}
	pool.Close()

	tokens := 0
	for r := range pool.Results() {
		lines[r.index] = r.text
		tokens += r.tokens
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return tokens, nil
}
