package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
)

// Metrics records request counts and latency labelled by route pattern,
// so path parameters do not blow up label cardinality.
func Metrics(m *metrics.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "/" {
			route = r.Path
		}
		m.ObserveHTTP(c.Method(), route, status, time.Since(start))

		return err
	}
}
