// Package objects implements upload and retrieval of namespaced objects,
// including lazily computed width-resized derivatives.
package objects

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/imghub/internal/derivative"
	"github.com/any-hub/imghub/internal/ident"
	"github.com/any-hub/imghub/internal/logging"
	"github.com/any-hub/imghub/internal/mediatype"
	"github.com/any-hub/imghub/internal/store"
	"github.com/any-hub/imghub/internal/transform"
)

// Resizer 计算派生图，生产环境由 transform.Pool 实现，测试可注入计数桩。
type Resizer interface {
	Resize(ctx context.Context, src []byte, width int) (*transform.Result, error)
}

// Options 汇总 Service 的依赖，Store/Cache/Resizer 必填。
type Options struct {
	Store   store.Store
	IDs     ident.Generator
	Cache   *derivative.Cache
	Resizer Resizer
	Logger  *logrus.Logger
}

// Service 组合对象存储、派生缓存与缩放器，对传输层提供 Upload/Retrieve。
type Service struct {
	store   store.Store
	ids     ident.Generator
	cache   *derivative.Cache
	resizer Resizer
	logger  *logrus.Logger
}

// NewService 校验依赖并构造 Service；IDs 缺省为 UUIDv4，Logger 缺省丢弃输出。
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("object store is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("derivative cache is required")
	}
	if opts.Resizer == nil {
		return nil, errors.New("resizer is required")
	}
	if opts.IDs == nil {
		opts.IDs = ident.UUID{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		store:   opts.Store,
		ids:     opts.IDs,
		cache:   opts.Cache,
		resizer: opts.Resizer,
		logger:  opts.Logger,
	}, nil
}

// UploadResult 是上传成功后返回给客户端的信息。
type UploadResult struct {
	ID         string `json:"uuid"`
	PublicPath string `json:"path"`
	SizeBytes  int64  `json:"size"`
}

// Upload 以新生成的标识符保存 body。originalFilename 不落盘，只拼进 PublicPath。
func (s *Service) Upload(ctx context.Context, namespace string, body io.Reader, originalFilename string) (*UploadResult, error) {
	if !store.ValidNamespace(namespace) {
		return nil, ErrInvalidNamespace
	}

	id := s.ids.Generate()
	entry, err := s.store.Put(ctx, store.Key{Namespace: namespace, ID: id}, body)
	if err != nil {
		if errors.Is(err, store.ErrInvalidKey) {
			return nil, wrap(ErrStorageWrite, err)
		}
		return nil, translate(err)
	}

	return &UploadResult{
		ID:         id,
		PublicPath: PublicPath(namespace, id, originalFilename),
		SizeBytes:  entry.SizeBytes,
	}, nil
}

// PublicPath 拼出 /<namespace>/<id>/<filename>，filename 为空时省略最后一段。
func PublicPath(namespace, id, filename string) string {
	p := "/" + url.PathEscape(namespace) + "/" + url.PathEscape(id)
	if filename = strings.TrimSpace(filename); filename != "" {
		p += "/" + url.PathEscape(filename)
	}
	return p
}

// Request 描述一次检索。Width 为 nil 表示返回原始字节。
type Request struct {
	Namespace string
	ID        string
	Slug      string
	Width     *int
}

// Object 是检索结果。ContentType 为空表示调用方不应覆盖默认类型。
type Object struct {
	Body        io.ReadCloser
	SizeBytes   int64
	ContentType string
	// Derived 表示 Body 是派生图；CacheHit 仅对派生图有意义。
	Derived  bool
	CacheHit bool
}

// ParseWidth 解析 w 查询参数：空串表示未请求缩放；其余必须是正整数。
func ParseWidth(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width <= 0 {
		return nil, ErrInvalidWidth
	}
	return &width, nil
}

// Retrieve 按 RESOLVE_PATH → NOT_FOUND | RAW_SERVE | DERIVE 处理一次检索，不做重试。
func (s *Service) Retrieve(ctx context.Context, req Request) (*Object, error) {
	if req.Width != nil && *req.Width <= 0 {
		return nil, ErrInvalidWidth
	}

	key := store.Key{Namespace: req.Namespace, ID: req.ID}
	if req.Width == nil {
		return s.serveRaw(ctx, key, req.Slug)
	}
	return s.derive(ctx, key, req.Slug, *req.Width)
}

func (s *Service) serveRaw(ctx context.Context, key store.Key, slug string) (*Object, error) {
	result, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, translate(err)
	}

	obj := &Object{
		Body:      result.Reader,
		SizeBytes: result.Entry.SizeBytes,
	}
	if mt, ok := mediatype.Resolve(slug); ok {
		obj.ContentType = mt.String()
	}
	return obj, nil
}

func (s *Service) derive(ctx context.Context, key store.Key, slug string, width int) (*Object, error) {
	entry, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, translate(err)
	}

	cacheKey := derivative.Key{Path: entry.FilePath, Width: width}
	res, err := s.cache.GetOrCompute(ctx, cacheKey, func(ctx context.Context) (derivative.Item, error) {
		return s.compute(ctx, key, width)
	})
	if err != nil {
		err = translate(err)
		s.logger.WithFields(logging.ObjectFields(key.Namespace, key.ID, width, false)).
			WithError(err).
			Warn("derivative_failed")
		return nil, err
	}

	fields := logging.ObjectFields(key.Namespace, key.ID, width, res.Hit)
	fields["shared"] = res.Shared
	s.logger.WithFields(fields).Debug("derivative_served")

	obj := &Object{
		Body:      io.NopCloser(bytes.NewReader(res.Item.Data)),
		SizeBytes: int64(len(res.Item.Data)),
		Derived:   true,
		CacheHit:  res.Hit,
	}
	if mt, ok := mediatype.Resolve(slug); ok {
		obj.ContentType = mt.String()
	} else {
		obj.ContentType = mediatype.ForType(res.Item.MediaType).String()
	}
	return obj, nil
}

func (s *Service) compute(ctx context.Context, key store.Key, width int) (derivative.Item, error) {
	started := time.Now()
	src, err := s.store.ReadAll(ctx, key)
	if err != nil {
		return derivative.Item{}, err
	}
	result, err := s.resizer.Resize(ctx, src, width)
	if err != nil {
		return derivative.Item{}, err
	}

	fields := logging.ObjectFields(key.Namespace, key.ID, width, false)
	fields["action"] = "derive"
	fields["source_bytes"] = len(src)
	fields["derived_bytes"] = len(result.Data)
	fields["height"] = result.Height
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	s.logger.WithFields(fields).Debug("derivative_computed")

	return derivative.Item{Data: result.Data, MediaType: result.MediaType}, nil
}

// CacheStats 返回派生缓存的计数器快照，供诊断接口使用。
func (s *Service) CacheStats() derivative.Stats {
	return s.cache.Stats()
}
