package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 保留早期部署使用的环境变量名，环境变量优先于配置文件。
var envBindings = map[string]string{
	"ListenPort":       "PORT",
	"StoragePath":      "STORAGE_PATH",
	"TrustProxy":       "TRUST_PROXY",
	"RateLimitMaxReqs": "RATE_LIMIT_MAX_REQS",
	"LogLevel":         "LOG_LEVEL",
}

// rateLimitWindowEnv 的纯数字取值按毫秒解释。
const rateLimitWindowEnv = "RATE_LIMIT_WINDOW"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量与校验逻辑。
// path 为空时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	if err := applyRateLimitWindowEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存储目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 3000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("TrustProxy", false)
	v.SetDefault("RateLimitWindow", "60s")
	v.SetDefault("RateLimitMaxReqs", 20)
	v.SetDefault("DerivativeCacheSize", 500)
	v.SetDefault("TransformConcurrency", 0)
	v.SetDefault("MaxUploadSize", 64*1024*1024)
	v.SetDefault("MaxSourcePixels", defaultMaxSourcePixels)
	v.SetDefault("MaxOutputPixels", defaultMaxOutputPixels)
}

func bindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}
	return nil
}

// applyRateLimitWindowEnv 兼容 RATE_LIMIT_WINDOW=60000 这种毫秒写法，
// 同时也接受 "1m" 等 Duration 字符串。
func applyRateLimitWindowEnv(v *viper.Viper) error {
	raw := strings.TrimSpace(os.Getenv(rateLimitWindowEnv))
	if raw == "" {
		return nil
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		v.Set("RateLimitWindow", (time.Duration(millis) * time.Millisecond).String())
		return nil
	}
	if _, err := time.ParseDuration(raw); err != nil {
		return newFieldError(rateLimitWindowEnv, "必须是毫秒整数或 Duration 字符串")
	}
	v.Set("RateLimitWindow", raw)
	return nil
}

const (
	defaultMaxSourcePixels int64 = 268402689
	defaultMaxOutputPixels int64 = 40_000_000
)

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 3000
	}
	if g.RateLimitWindow.DurationValue() == 0 {
		g.RateLimitWindow = Duration(time.Minute)
	}
	if g.DerivativeCacheSize == 0 {
		g.DerivativeCacheSize = 500
	}
	if g.MaxSourcePixels == 0 {
		g.MaxSourcePixels = defaultMaxSourcePixels
	}
	if g.MaxOutputPixels == 0 {
		g.MaxOutputPixels = defaultMaxOutputPixels
	}
	if g.TransformConcurrency == 0 {
		g.TransformConcurrency = runtime.GOMAXPROCS(0)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
