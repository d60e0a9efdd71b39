package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数，所有命名空间共享同一份配置。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StoragePath   string `mapstructure:"StoragePath"`

	// TrustProxy 打开后从 X-Forwarded-* 读取客户端 IP 与协议。
	TrustProxy bool `mapstructure:"TrustProxy"`
	// RateLimitWindow/RateLimitMaxReqs 控制单 IP 的限流窗口，MaxReqs 为 0 时关闭限流。
	RateLimitWindow  Duration `mapstructure:"RateLimitWindow"`
	RateLimitMaxReqs int      `mapstructure:"RateLimitMaxReqs"`

	DerivativeCacheSize  int   `mapstructure:"DerivativeCacheSize"`
	TransformConcurrency int   `mapstructure:"TransformConcurrency"`
	MaxUploadSize        int64 `mapstructure:"MaxUploadSize"`

	// MaxSourcePixels/MaxOutputPixels 在解码前限制源图与派生图的像素数。
	MaxSourcePixels int64 `mapstructure:"MaxSourcePixels"`
	MaxOutputPixels int64 `mapstructure:"MaxOutputPixels"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// Summary 输出启动日志使用的关键字段，避免在多个入口重复拼装。
func (c *Config) Summary() map[string]interface{} {
	if c == nil {
		return nil
	}
	g := c.Global
	return map[string]interface{}{
		"listen_port":           g.ListenPort,
		"storage_path":          g.StoragePath,
		"trust_proxy":           g.TrustProxy,
		"rate_limit_window":     g.RateLimitWindow.DurationValue().String(),
		"rate_limit_max_reqs":   g.RateLimitMaxReqs,
		"derivative_cache_size": g.DerivativeCacheSize,
		"transform_concurrency": g.TransformConcurrency,
		"max_source_pixels":     g.MaxSourcePixels,
		"max_output_pixels":     g.MaxOutputPixels,
	}
}
