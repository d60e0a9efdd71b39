package config

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError(globalField("ListenPort"), "必须在 1-65535")
	}
	if strings.TrimSpace(g.StoragePath) == "" {
		return newFieldError(globalField("StoragePath"), "不能为空")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError(globalField("LogLevel"), "无法识别的日志级别")
		}
	}
	if g.RateLimitWindow.DurationValue() <= 0 {
		return newFieldError(globalField("RateLimitWindow"), "必须大于 0")
	}
	if g.RateLimitMaxReqs < 0 {
		return newFieldError(globalField("RateLimitMaxReqs"), "不能为负数")
	}
	if g.DerivativeCacheSize <= 0 {
		return newFieldError(globalField("DerivativeCacheSize"), "必须大于 0")
	}
	if g.TransformConcurrency <= 0 {
		return newFieldError(globalField("TransformConcurrency"), "必须大于 0")
	}
	if g.MaxUploadSize <= 0 {
		return newFieldError(globalField("MaxUploadSize"), "必须大于 0")
	}
	if g.MaxSourcePixels <= 0 {
		return newFieldError(globalField("MaxSourcePixels"), "必须大于 0")
	}
	if g.MaxOutputPixels <= 0 {
		return newFieldError(globalField("MaxOutputPixels"), "必须大于 0")
	}
	return nil
}

// RateLimitEnabled 表示是否需要挂载限流中间件。
func (g GlobalConfig) RateLimitEnabled() bool {
	return g.RateLimitMaxReqs > 0
}
