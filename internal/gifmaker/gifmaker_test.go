package gifmaker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"testing"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.SetEnabled(false)
	os.Exit(m.Run())
}

// solidPNG returns a data URL of a w x h image filled with c.
func solidPNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return dataurl.Encode("image/png", buf.Bytes())
}

func decodeGIF(t *testing.T, data []byte) *gif.GIF {
	t.Helper()
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gif.DecodeAll: %v", err)
	}
	return g
}

func TestAssemble_FrameCountOrderAndDelay(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	frames := []string{
		solidPNG(t, 40, 20, red),
		solidPNG(t, 20, 40, blue),
		solidPNG(t, 30, 30, red),
	}

	out, err := Assemble(context.Background(), frames, Options{Size: 16})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	g := decodeGIF(t, out)
	if len(g.Image) != 3 {
		t.Fatalf("frames = %d, want 3", len(g.Image))
	}
	for i, d := range g.Delay {
		if d != 33 {
			t.Errorf("delay[%d] = %d, want 33", i, d)
		}
	}
	for i, frame := range g.Image {
		if b := frame.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
			t.Errorf("frame %d bounds = %v, want 16x16", i, b)
		}
	}

	r, _, b, _ := g.Image[1].At(8, 8).RGBA()
	if b>>8 < 200 || r>>8 > 50 {
		t.Errorf("frame order not preserved: centre of frame 1 = r%d b%d", r>>8, b>>8)
	}
}

func TestAssemble_SkipsInvalidFrames(t *testing.T) {
	frames := []string{
		"data:image/png;base64,bm90IGFuIGltYWdl",
		solidPNG(t, 10, 10, color.White),
		"not a data url",
	}
	out, err := Assemble(context.Background(), frames, Options{Size: 8})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if n := len(decodeGIF(t, out).Image); n != 1 {
		t.Errorf("frames = %d, want 1", n)
	}
}

func TestAssemble_NoUsableFrames(t *testing.T) {
	_, err := Assemble(context.Background(), []string{"garbage"}, Options{})
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("err = %v, want ErrEncoding", err)
	}
	if _, err := Assemble(context.Background(), nil, Options{}); !errors.Is(err, ErrEncoding) {
		t.Fatalf("empty input err = %v, want ErrEncoding", err)
	}
}

func TestAssemble_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Assemble(ctx, []string{solidPNG(t, 4, 4, color.White)}, Options{Size: 4})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCoverCrop_CentersWideImage(t *testing.T) {
	// Left and right thirds black, middle third white: a cover crop of a 3:1
	// image keeps only the middle.
	src := image.NewRGBA(image.Rect(0, 0, 30, 10))
	for y := 0; y < 10; y++ {
		for x := 10; x < 20; x++ {
			src.Set(x, y, color.White)
		}
	}
	dst := CoverCrop(src, 10)
	if dst.Bounds().Dx() != 10 || dst.Bounds().Dy() != 10 {
		t.Fatalf("bounds = %v", dst.Bounds())
	}
	r, g, b, _ := dst.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("centre pixel = %d,%d,%d, want white", r>>8, g>>8, b>>8)
	}
}
