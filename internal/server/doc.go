// Package server hosts the Fiber HTTP service and its middleware chain:
// panic recovery, request IDs, access logging, security headers, CORS and
// per-IP rate limiting. Object and diagnostics routes live in the routes
// subpackage and are attached to the *fiber.App returned by NewApp, so the
// core service never depends on the transport.
package server
