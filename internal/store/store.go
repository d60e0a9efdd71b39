package store

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Store 负责对象正文的读写。磁盘布局遵循：
//
//	<StoragePath>/<Namespace>/<ID>    # 上传的原始字节
//
// 原始文件名不落盘，只由调用方在上传响应中回显。
type Store interface {
	// Put 将 body 写入 key 对应的文件，命名空间目录不存在时自动创建。
	// 写入通过临时文件 + rename 保证原子性，失败时返回包装了 ErrWriteFailed 的错误。
	Put(ctx context.Context, key Key, body io.Reader) (*Entry, error)

	// Path 计算 key 的存储路径，不访问文件系统。
	Path(key Key) (string, error)

	// Stat 返回对象的文件信息，对象不存在时返回 ErrNotFound。
	Stat(ctx context.Context, key Key) (*Entry, error)

	// Open 返回可流式读取的对象，调用方负责关闭 Reader。
	Open(ctx context.Context, key Key) (*ReadResult, error)

	// ReadAll 读取对象全部字节，供派生图计算使用。
	ReadAll(ctx context.Context, key Key) ([]byte, error)
}

// Key 唯一定位一个对象（命名空间 + 标识符），两段都必须是单个路径片段。
type Key struct {
	Namespace string
	ID        string
}

// String 输出 namespace/id 形式，便于日志使用。
func (k Key) String() string {
	return k.Namespace + "/" + k.ID
}

// Entry 描述一个已落盘对象。
type Entry struct {
	Key       Key    `json:"key"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于传输层直接流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示对象不存在。
	ErrNotFound = errors.New("object not found")
	// ErrWriteFailed 表示目录创建或文件写入失败。
	ErrWriteFailed = errors.New("object write failed")
	// ErrInvalidKey 表示命名空间或标识符不是合法的路径片段。
	ErrInvalidKey = errors.New("invalid object key")
)

// ReservedNamespace 留给 /-/ 诊断路由，不能用作命名空间。
const ReservedNamespace = "-"

// ValidNamespace 判断 s 能否作为命名空间：合法路径片段且不是保留名。
func ValidNamespace(s string) bool {
	return s != ReservedNamespace && ValidSegment(s)
}

// ValidSegment 判断 s 能否作为单个路径片段落盘。
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}
