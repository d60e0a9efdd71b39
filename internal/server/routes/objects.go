package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/imghub/internal/logging"
	"github.com/any-hub/imghub/internal/objects"
	"github.com/any-hub/imghub/internal/server"
)

// RegisterObjectRoutes 挂载上传与检索接口。必须在诊断路由之后注册，
// 否则 /-/cache 会被 /:ns/:uuid 匹配。
func RegisterObjectRoutes(app *fiber.App, svc *objects.Service, logger *logrus.Logger) {
	if app == nil || svc == nil {
		return
	}
	if logger == nil {
		logger = logging.Discard()
	}
	h := &objectHandler{svc: svc, logger: logger}

	app.Post("/:ns/upload", h.upload)
	app.Get("/:ns/:uuid", h.retrieve)
	app.Get("/:ns/:uuid/:slug", h.retrieve)
}

type objectHandler struct {
	svc    *objects.Service
	logger *logrus.Logger
}

func (h *objectHandler) upload(c fiber.Ctx) error {
	namespace := c.Params("ns")
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file_required"})
	}
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := h.svc.Upload(c.Context(), namespace, file, header.Filename)
	if err != nil {
		return h.fail(c, err, namespace, "")
	}

	fields := logging.ObjectFields(namespace, result.ID, 0, false)
	fields["action"] = "upload"
	fields["request_id"] = server.RequestID(c)
	fields["size"] = result.SizeBytes
	h.logger.WithFields(fields).Info("object_stored")

	return c.JSON(fiber.Map{
		"uuid": result.ID,
		"url":  c.Scheme() + "://" + c.Host() + result.PublicPath,
	})
}

func (h *objectHandler) retrieve(c fiber.Ctx) error {
	namespace := c.Params("ns")
	id := c.Params("uuid")

	width, err := objects.ParseWidth(c.Query("w"))
	if err != nil {
		return h.fail(c, err, namespace, id)
	}

	obj, err := h.svc.Retrieve(c.Context(), objects.Request{
		Namespace: namespace,
		ID:        id,
		Slug:      c.Params("slug"),
		Width:     width,
	})
	if err != nil {
		return h.fail(c, err, namespace, id)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	if obj.Derived {
		if obj.CacheHit {
			c.Set("X-Derivative-Cache", "HIT")
		} else {
			c.Set("X-Derivative-Cache", "MISS")
		}
	}
	// fasthttp 在响应写完后关闭 Body。
	return c.SendStream(obj.Body, int(obj.SizeBytes))
}

// fail 将服务层错误映射为 HTTP 状态码与 {"error": code}。
func (h *objectHandler) fail(c fiber.Ctx, err error, namespace, id string) error {
	kind := objects.KindOf(err)
	status := statusFor(kind)
	if status >= fiber.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"action":     "object_error",
			"request_id": server.RequestID(c),
			"namespace":  namespace,
			"id":         id,
		}).WithError(err).Error("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": kind.Code()})
}

func statusFor(kind objects.Kind) int {
	switch kind {
	case objects.KindNotFound:
		return fiber.StatusNotFound
	case objects.KindInvalidWidth,
		objects.KindDecode,
		objects.KindUnsupportedFormat,
		objects.KindInvalidNamespace,
		objects.KindImageTooLarge:
		return fiber.StatusBadRequest
	case objects.KindStorageWrite, objects.KindUnknown:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}
