package transform

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

func TestResizeKeepsAspectRatio(t *testing.T) {
	src := encodePNG(t, 4000, 3000)

	result, err := Resize(src, 400)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if result.Width != 400 || result.Height != 300 {
		t.Fatalf("expected 400x300, got %dx%d", result.Width, result.Height)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("output should decode: %v", err)
	}
	if format != "png" || result.MediaType != "image/png" {
		t.Fatalf("expected png output, got %s (%s)", format, result.MediaType)
	}
	if cfg.Width != 400 || cfg.Height != 300 {
		t.Fatalf("decoded size mismatch: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestResizePreservesFormat(t *testing.T) {
	testCases := []struct {
		name   string
		src    []byte
		format string
		mime   string
	}{
		{"jpeg", encodeJPEG(t, 64, 32), "jpeg", "image/jpeg"},
		{"gif", encodeGIF(t, 64, 32), "gif", "image/gif"},
		{"png", encodePNG(t, 64, 32), "png", "image/png"},
		{"bmp", encodeWith(t, imaging.BMP, 64, 32), "bmp", "image/bmp"},
		{"tiff", encodeWith(t, imaging.TIFF, 64, 32), "tiff", "image/tiff"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Resize(tc.src, 16)
			if err != nil {
				t.Fatalf("resize failed: %v", err)
			}
			_, format, err := image.DecodeConfig(bytes.NewReader(result.Data))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != tc.format || result.MediaType != tc.mime {
				t.Fatalf("expected %s/%s, got %s/%s", tc.format, tc.mime, format, result.MediaType)
			}
			if result.Width != 16 || result.Height != 8 {
				t.Fatalf("expected 16x8, got %dx%d", result.Width, result.Height)
			}
		})
	}
}

func TestResizeTinyHeightClampsToOne(t *testing.T) {
	result, err := Resize(encodePNG(t, 1000, 1), 10)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if result.Height != 1 {
		t.Fatalf("height should be clamped to 1, got %d", result.Height)
	}
}

func TestResizeRejectsNonImage(t *testing.T) {
	_, err := Resize([]byte("just some text, definitely not pixels"), 100)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestResizeRejectsTruncatedImage(t *testing.T) {
	src := encodePNG(t, 64, 64)
	_, err := Resize(src[:len(src)/2], 10)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for truncated png, got %v", err)
	}
}

func TestResizeRejectsSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	_, err := Resize(svg, 5)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestResizeRejectsNonPositiveWidth(t *testing.T) {
	src := encodePNG(t, 8, 8)
	for _, w := range []int{0, -5} {
		if _, err := Resize(src, w); !errors.Is(err, ErrInvalidWidth) {
			t.Fatalf("width %d: expected ErrInvalidWidth, got %v", w, err)
		}
	}
}

func TestResizeRejectsOversizedWidth(t *testing.T) {
	src := encodePNG(t, 100, 100)
	for _, w := range []int{200000, 1 << 30} {
		if _, err := Resize(src, w); !errors.Is(err, ErrTooLarge) {
			t.Fatalf("width %d: expected ErrTooLarge, got %v", w, err)
		}
	}
}

func TestResizeRejectsOversizedOutputArea(t *testing.T) {
	// 宽度本身未超限，但按比例算出的高度使总像素超限。
	src := encodePNG(t, 10, 1000)
	_, err := ResizeWithLimits(src, 100, Limits{MaxOutputPixels: 50_000})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for 100x10000 output, got %v", err)
	}
}

func TestResizeRejectsHugeDeclaredDimensions(t *testing.T) {
	src := withPNGDimensions(t, encodePNG(t, 4, 4), 60000, 60000)

	cfg, err := png.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		t.Fatalf("patched header should still parse: %v", err)
	}
	if cfg.Width != 60000 || cfg.Height != 60000 {
		t.Fatalf("header not patched: %dx%d", cfg.Width, cfg.Height)
	}

	if _, err := Resize(src, 10); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for 60000x60000 source, got %v", err)
	}
}

func TestPoolAppliesLimits(t *testing.T) {
	pool := NewLimitedPool(1, Limits{MaxSourcePixels: 100})
	if pool.Limits().MaxOutputPixels != DefaultMaxOutputPixels {
		t.Fatalf("zero output limit should fall back to default, got %d", pool.Limits().MaxOutputPixels)
	}
	if _, err := pool.Resize(context.Background(), encodePNG(t, 20, 20), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge for 400-pixel source, got %v", err)
	}
	if _, err := pool.Resize(context.Background(), encodePNG(t, 10, 10), 5); err != nil {
		t.Fatalf("source within limits should resize: %v", err)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(1)
	if pool.Size() != 1 {
		t.Fatalf("unexpected pool size %d", pool.Size())
	}

	// 占满唯一的槽位后，带超时的调用应放弃等待。
	if err := pool.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Resize(ctx, encodePNG(t, 8, 8), 4); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while pool is full, got %v", err)
	}
	pool.sem.Release(1)

	var wg sync.WaitGroup
	var failures int32
	src := encodePNG(t, 256, 256)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Resize(context.Background(), src, 32); err != nil {
				atomic.AddInt32(&failures, 1)
			}
		}()
	}
	wg.Wait()
	if failures != 0 {
		t.Fatalf("%d queued resizes failed", failures)
	}
}

func TestNewPoolDefaultsSize(t *testing.T) {
	if NewPool(0).Size() <= 0 {
		t.Fatalf("default pool size should be positive")
	}
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += max(1, h/8) {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeWith(t *testing.T, format imaging.Format, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, testImage(w, h), format); err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

// withPNGDimensions 改写 IHDR 中声明的宽高并重算 CRC，像素数据保持不变。
func withPNGDimensions(t *testing.T, src []byte, w, h uint32) []byte {
	t.Helper()
	const ihdr = 8 // 签名之后的第一个 chunk
	if len(src) < ihdr+8+13+4 || string(src[ihdr+4:ihdr+8]) != "IHDR" {
		t.Fatalf("unexpected png layout")
	}
	out := append([]byte(nil), src...)
	data := out[ihdr+8 : ihdr+8+13]
	binary.BigEndian.PutUint32(data[0:4], w)
	binary.BigEndian.PutUint32(data[4:8], h)
	crc := crc32.NewIEEE()
	crc.Write(out[ihdr+4 : ihdr+8+13])
	binary.BigEndian.PutUint32(out[ihdr+8+13:ihdr+8+13+4], crc.Sum32())
	return out
}
