package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/hrquiz/internal/quiz"
	"github.com/dgallion1/hrquiz/internal/source"
	"github.com/dgallion1/hrquiz/internal/xmlout"
)

// Options bounds a single conversion.
type Options struct {
	MaxInputBytes int64
	ParseTimeout  time.Duration
	PDFFallback   bool
}

// Converter turns quiz markup into serialized quiz XML.
type Converter struct {
	builder *quiz.Builder
	opts    Options
	stats   *Stats
	log     *slog.Logger
}

func NewConverter(builder *quiz.Builder, opts Options, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{builder: builder, opts: opts, stats: NewStats(time.Hour), log: log}
}

// Stats returns the latency and outcome record of finished conversions.
func (c *Converter) Stats() *Stats {
	return c.stats
}

// ReadInput reads r up to the configured bound.
func (c *Converter) ReadInput(r io.Reader) ([]byte, error) {
	if c.opts.MaxInputBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.opts.MaxInputBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.opts.MaxInputBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", quiz.ErrInputTooLarge, c.opts.MaxInputBytes)
	}
	return data, nil
}

// Load extracts the markup text from a file's contents.
func (c *Converter) Load(data []byte, filename string) (string, error) {
	if c.opts.MaxInputBytes > 0 && int64(len(data)) > c.opts.MaxInputBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", quiz.ErrInputTooLarge, len(data), c.opts.MaxInputBytes)
	}
	l, err := source.ForFile(filename, c.opts.PDFFallback)
	if err != nil {
		return "", err
	}
	return l.Load(bytes.NewReader(data), filename)
}

// Parse decomposes text into a part tree within the parse timeout.
func (c *Converter) Parse(ctx context.Context, text string) (*quiz.Node, error) {
	if c.opts.ParseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ParseTimeout)
		defer cancel()
	}
	return quiz.Decompose(ctx, text)
}

// Render builds and serializes the quiz document for root.
func (c *Converter) Render(root *quiz.Node) ([]byte, error) {
	el, err := c.builder.Build(root)
	if err != nil {
		return nil, err
	}
	return xmlout.Marshal(el)
}

// Convert runs the whole conversion for one input.
func (c *Converter) Convert(ctx context.Context, r io.Reader, filename string) (out []byte, err error) {
	start := time.Now()
	defer func() { c.stats.Observe(start, err) }()
	data, err := c.ReadInput(r)
	if err != nil {
		return nil, err
	}
	text, err := c.Load(data, filename)
	if err != nil {
		return nil, err
	}
	root, err := c.Parse(ctx, text)
	if err != nil {
		return nil, err
	}
	out, err = c.Render(root)
	if err != nil {
		return nil, err
	}
	c.log.Debug("converted", "filename", filename, "questions", len(root.Get(quiz.KindItem)), "bytes", len(out))
	return out, nil
}

// ConvertFile converts the file at in and writes the XML to out. Nothing
// is written unless the whole document was built.
func (c *Converter) ConvertFile(ctx context.Context, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := c.Convert(ctx, f, filepath.Base(in))
	if err != nil {
		return fmt.Errorf("convert %s: %w", in, err)
	}
	return xmlout.WriteBytes(out, data)
}
