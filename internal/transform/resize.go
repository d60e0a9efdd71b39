package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode 表示源数据不是可解码的图片。
	ErrDecode = errors.New("source is not a decodable image")
	// ErrUnsupportedFormat 表示源数据是图片，但没有可用的解码器。
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidWidth 表示目标宽度不是正整数。
	ErrInvalidWidth = errors.New("target width must be positive")
	// ErrTooLarge 表示源图或缩放结果的像素数超出 Limits。
	ErrTooLarge = errors.New("image dimensions exceed limits")
)

const (
	// DefaultMaxSourcePixels 与 0x3FFF*0x3FFF 相同。
	DefaultMaxSourcePixels int64 = 268402689
	// DefaultMaxOutputPixels 约为 8000x5000。
	DefaultMaxOutputPixels int64 = 40_000_000
)

// Limits 在解码前约束像素数，超限的请求不会分配图像内存。
type Limits struct {
	MaxSourcePixels int64
	MaxOutputPixels int64
}

// DefaultLimits 返回默认上限。
func DefaultLimits() Limits {
	return Limits{
		MaxSourcePixels: DefaultMaxSourcePixels,
		MaxOutputPixels: DefaultMaxOutputPixels,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxSourcePixels <= 0 {
		l.MaxSourcePixels = DefaultMaxSourcePixels
	}
	if l.MaxOutputPixels <= 0 {
		l.MaxOutputPixels = DefaultMaxOutputPixels
	}
	return l
}

// check 依据头部尺寸校验源图与目标尺寸，返回按比例计算的目标高度。
func (l Limits) check(srcW, srcH, width int) (int, error) {
	if srcW <= 0 || srcH <= 0 {
		return 0, fmt.Errorf("%w: empty dimensions %dx%d", ErrDecode, srcW, srcH)
	}
	if pixels := int64(srcW) * int64(srcH); pixels > l.MaxSourcePixels {
		return 0, fmt.Errorf("%w: source %dx%d", ErrTooLarge, srcW, srcH)
	}
	if int64(width) > l.MaxOutputPixels {
		return 0, fmt.Errorf("%w: width %d", ErrTooLarge, width)
	}
	height := (int64(srcH)*int64(width) + int64(srcW)/2) / int64(srcW)
	if height < 1 {
		height = 1
	}
	if height > l.MaxOutputPixels/int64(width) {
		return 0, fmt.Errorf("%w: output %dx%d", ErrTooLarge, width, height)
	}
	return int(height), nil
}

const jpegQuality = 85

// outputFormats 记录解码格式名到编码格式与 MIME 的映射。
var outputFormats = map[string]struct {
	format imaging.Format
	mime   string
}{
	"jpeg": {imaging.JPEG, "image/jpeg"},
	"png":  {imaging.PNG, "image/png"},
	"gif":  {imaging.GIF, "image/gif"},
	"bmp":  {imaging.BMP, "image/bmp"},
	"tiff": {imaging.TIFF, "image/tiff"},
	"webp": {imaging.PNG, "image/png"},
}

// Result 是一次缩放的产物。
type Result struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}

// Resize 使用 DefaultLimits 将 src 缩放到 width 宽。
func Resize(src []byte, width int) (*Result, error) {
	return ResizeWithLimits(src, width, DefaultLimits())
}

// ResizeWithLimits 将 src 缩放到 width 宽，高度按比例计算（至少 1 像素）。
// 源图或结果超出 limits 时返回 ErrTooLarge，此时不会解码像素。
func ResizeWithLimits(src []byte, width int, limits Limits) (*Result, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}

	detected := mimetype.Detect(src)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrDecode, detected.String())
	}

	header, formatName, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected.String())
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out, ok := outputFormats[formatName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, formatName)
	}
	height, err := limits.withDefaults().check(header.Width, header.Height, width)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, out.format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", formatName, err)
	}

	bounds := resized.Bounds()
	return &Result{
		Data:      buf.Bytes(),
		MediaType: out.mime,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}
