// Package gifmaker turns generated photo payloads into an animated GIF.
//
// Each frame is decoded, cover-scaled and center-cropped to a square, reduced
// to a 256-colour palette with a median-cut quantizer and drawn with
// Floyd-Steinberg dithering before being handed to image/gif.
package gifmaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSize is the width and height of every frame.
	DefaultSize = 512
	// DefaultFrameDelay is how long each frame is shown.
	DefaultFrameDelay = 333 * time.Millisecond
	// DefaultMaxColors is the palette size per frame.
	DefaultMaxColors = 256
	// MaxFrames is the most frames a GIF is assembled from.
	MaxFrames = 5
)

// ErrEncoding is returned when no frame could be decoded or the encoder failed.
var ErrEncoding = errors.New("gif encoding failed")

// Options tunes Assemble. Zero values take the defaults.
type Options struct {
	Size       int
	FrameDelay time.Duration
	MaxColors  int
	// Workers bounds concurrent frame preparation; 0 means one per frame.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.FrameDelay <= 0 {
		o.FrameDelay = DefaultFrameDelay
	}
	if o.MaxColors <= 0 || o.MaxColors > 256 {
		o.MaxColors = DefaultMaxColors
	}
	return o
}

// Assemble builds a looping GIF from data-URL frames, in the given order.
// Frames that cannot be decoded are skipped; if none remain ErrEncoding is
// returned.
func Assemble(ctx context.Context, frames []string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	start := time.Now()

	prepared := make([]*image.Paletted, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, payload := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frame, err := prepareFrame(payload, opts)
			if err != nil {
				log.Warn().Err(err).Int("frame", i).Msg("Skipping GIF frame")
				return nil
			}
			prepared[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	delay := int(opts.FrameDelay / (10 * time.Millisecond))
	anim := &gif.GIF{LoopCount: 0}
	for _, frame := range prepared {
		if frame == nil {
			continue
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}
	if len(anim.Image) == 0 {
		return nil, fmt.Errorf("%w: no usable frames among %d", ErrEncoding, len(frames))
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	metrics.New(metrics.Namespace).
		Metric("GIFFrames", float64(len(anim.Image)), metrics.UnitCount).
		Duration("GIFAssemblyLatency", time.Since(start)).
		Metric("GIFBytes", float64(buf.Len()), metrics.UnitBytes).
		Flush()
	log.Info().
		Int("frames", len(anim.Image)).
		Int("skipped", len(frames)-len(anim.Image)).
		Int("bytes", buf.Len()).
		Dur("duration", time.Since(start)).
		Msg("GIF assembled")
	return buf.Bytes(), nil
}

func prepareFrame(payload string, opts Options) (*image.Paletted, error) {
	_, data, err := dataurl.Decode(payload)
	if err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	square := CoverCrop(src, opts.Size)
	q := quantize.MedianCutQuantizer{}
	palette := q.Quantize(make(color.Palette, 0, opts.MaxColors), square)
	if len(palette) == 0 {
		palette = color.Palette{color.Black}
	}
	dst := image.NewPaletted(square.Bounds(), palette)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), square, image.Point{})
	return dst, nil
}

// CoverCrop scales src so it covers a size x size square, preserving aspect
// ratio, and crops the overflow evenly from both sides.
func CoverCrop(src image.Image, size int) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if sw == 0 || sh == 0 {
		return dst
	}

	// Scale factor is size/min(sw, sh); the crop window in source pixels is
	// the largest centered square.
	side := min(sw, sh)
	x0 := b.Min.X + (sw-side)/2
	y0 := b.Min.Y + (sh-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
