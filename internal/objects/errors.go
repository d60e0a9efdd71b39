package objects

import (
	"errors"
	"fmt"

	"github.com/any-hub/imghub/internal/store"
	"github.com/any-hub/imghub/internal/transform"
)

var (
	// ErrNotFound 表示命名空间/标识符未知或文件缺失。
	ErrNotFound = errors.New("object not found")
	// ErrStorageWrite 表示上传时目录或文件写入失败。
	ErrStorageWrite = errors.New("storage write failed")
	// ErrInvalidWidth 表示 w 参数存在但不是正整数。
	ErrInvalidWidth = errors.New("width must be a positive integer")
	// ErrDecode 表示请求派生图时源文件不是有效图片。
	ErrDecode = errors.New("source is not a decodable image")
	// ErrUnsupportedFormat 表示源文件是无法处理的图片格式。
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrImageTooLarge 表示源图或请求的派生尺寸超出像素上限。
	ErrImageTooLarge = errors.New("image dimensions exceed limits")
	// ErrInvalidNamespace 表示上传使用的命名空间不是合法路径片段或为保留名。
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// Kind 是错误的封闭分类，传输层据此选择响应码。
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindStorageWrite
	KindInvalidWidth
	KindDecode
	KindUnsupportedFormat
	KindInvalidNamespace
	KindImageTooLarge
)

// Code 返回对外暴露的错误码。
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindStorageWrite:
		return "storage_write_failed"
	case KindInvalidWidth:
		return "invalid_width"
	case KindDecode:
		return "decode_error"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindInvalidNamespace:
		return "invalid_namespace"
	case KindImageTooLarge:
		return "image_too_large"
	default:
		return "internal_error"
	}
}

// KindOf 将任意错误归类，nil 返回 KindUnknown。
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorageWrite):
		return KindStorageWrite
	case errors.Is(err, ErrInvalidWidth):
		return KindInvalidWidth
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrInvalidNamespace):
		return KindInvalidNamespace
	case errors.Is(err, ErrImageTooLarge):
		return KindImageTooLarge
	default:
		return KindUnknown
	}
}

// translate 将下层包的哨兵错误映射到本包的分类，保留原始错误链。
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidKey):
		return ErrNotFound
	case errors.Is(err, store.ErrWriteFailed):
		return wrap(ErrStorageWrite, err)
	case errors.Is(err, transform.ErrInvalidWidth):
		return wrap(ErrInvalidWidth, err)
	case errors.Is(err, transform.ErrTooLarge):
		return wrap(ErrImageTooLarge, err)
	case errors.Is(err, transform.ErrUnsupportedFormat):
		return wrap(ErrUnsupportedFormat, err)
	case errors.Is(err, transform.ErrDecode):
		return wrap(ErrDecode, err)
	default:
		return err
	}
}

func wrap(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
