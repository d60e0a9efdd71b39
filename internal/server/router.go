package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/imghub/internal/logging"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
	// TrustProxy 打开后信任回环/内网代理转发的 X-Forwarded-* 头。
	TrustProxy bool
	// RateLimitMax 为 0 时关闭限流。
	RateLimitMax    int
	RateLimitWindow time.Duration
	BodyLimit       int
}

const contextKeyRequestID = "_imghub_request_id"

// NewApp builds a Fiber application with the shared middleware chain and the
// /status health check. Callers attach object routes afterwards.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}
	if opts.RateLimitMax > 0 && opts.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("invalid rate limit window: %s", opts.RateLimitWindow)
	}

	cfg := fiber.Config{
		CaseSensitive: true,
		UnescapePath:  true,
		ErrorHandler:  errorHandler(opts.Logger),
	}
	if opts.BodyLimit > 0 {
		cfg.BodyLimit = opts.BodyLimit
	}
	if opts.TrustProxy {
		cfg.TrustProxy = true
		cfg.ProxyHeader = fiber.HeaderXForwardedFor
		cfg.TrustProxyConfig = fiber.TrustProxyConfig{
			Loopback:  true,
			LinkLocal: true,
			Private:   true,
		}
	}

	app := fiber.New(cfg)

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))
	if opts.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimitMax,
			Expiration: opts.RateLimitWindow,
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
			},
		}))
	}
	app.Use(helmet.New())
	// 允许页面以 iframe 嵌入对象。
	app.Use(func(c fiber.Ctx) error {
		c.Response().Header.Del(fiber.HeaderXFrameOptions)
		return c.Next()
	})
	app.Use(cors.New())

	app.Get("/status", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	return app, nil
}

// requestContextMiddleware 生成请求 ID 并在请求结束后输出一条访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()
		if err != nil {
			// 先渲染错误响应，访问日志才能记录最终状态码。
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		fields := logging.RequestFields(reqID, c.IP(), c.Method(), c.Path())
		fields["action"] = "request"
		fields["query"] = string(c.Request().URI().QueryString())
		fields["status"] = c.Response().StatusCode()
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		entry := logger.WithFields(fields)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("request")
		return nil
	}
}

// errorHandler 将未处理的错误统一渲染为 {"error": code} JSON。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := "internal_error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			code = errorCode(status)
		} else {
			logger.WithFields(logrus.Fields{
				"action":     "unhandled_error",
				"request_id": RequestID(c),
				"path":       c.Path(),
			}).WithError(err).Error("request failed")
		}
		return c.Status(status).JSON(fiber.Map{"error": code})
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case fiber.StatusBadRequest:
		return "bad_request"
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "request_failed"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
