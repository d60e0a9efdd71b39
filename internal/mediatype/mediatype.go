// Package mediatype resolves Content-Type values from filenames or slugs.
package mediatype

import (
	"mime"
	"path"
	"strings"
)

// Fallback 是无法识别扩展名时返回的类型。
const Fallback = "application/octet-stream"

const defaultCharset = "UTF-8"

// extraTypes 补充标准库内置表之外的常见扩展名。mime.TypeByExtension 还会读取
// 宿主机的 /etc/mime.types 等文件，不在内置表与本表中的扩展名结果可能因机器而异。
var extraTypes = map[string]string{
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".avif": "image/avif",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".zip":  "application/zip",
	".gz":   "application/gzip",
}

// textualTypes 列出 text/* 之外同样需要附带 charset 的类型。
var textualTypes = map[string]struct{}{
	"application/json":       {},
	"application/javascript": {},
	"application/xml":        {},
	"image/svg+xml":          {},
}

func init() {
	for ext, typ := range extraTypes {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// MediaType 是解析后的 MIME 类型及可选 charset。
type MediaType struct {
	Type    string
	Charset string
}

// String 渲染为 Content-Type 头的取值。
func (m MediaType) String() string {
	if m.Type == "" {
		return ""
	}
	if m.Charset == "" {
		return m.Type
	}
	return m.Type + "; charset=" + m.Charset
}

// IsZero 表示未解析出任何类型。
func (m MediaType) IsZero() bool {
	return m.Type == ""
}

// Resolve 根据文件名或 slug 的扩展名解析类型。内置表与 extraTypes 之外的扩展名
// 取决于宿主机的 MIME 配置文件。没有点号时整个 slug 视作扩展名，
// 例如 "png"。name 为空时返回 ok=false，调用方不应设置 Content-Type；
// 无法识别的扩展名返回 Fallback。
func Resolve(name string) (MediaType, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MediaType{}, false
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = "." + strings.ToLower(strings.TrimPrefix(name, "."))
	}

	raw := mime.TypeByExtension(ext)
	if raw == "" {
		return MediaType{Type: Fallback}, true
	}

	typ, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return MediaType{Type: Fallback}, true
	}
	return MediaType{Type: typ, Charset: charsetFor(typ, params["charset"])}, true
}

// ForType 为已知的 MIME 类型补齐 charset，供派生图等不带 slug 的场景使用。
func ForType(typ string) MediaType {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		return MediaType{Type: Fallback}
	}
	return MediaType{Type: typ, Charset: charsetFor(typ, "")}
}

func charsetFor(typ, declared string) string {
	if !isTextual(typ) {
		return ""
	}
	if declared != "" && !strings.EqualFold(declared, defaultCharset) {
		return declared
	}
	return defaultCharset
}

func isTextual(typ string) bool {
	if strings.HasPrefix(typ, "text/") {
		return true
	}
	_, ok := textualTypes[typ]
	return ok
}
