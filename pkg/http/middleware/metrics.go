package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"OmniSpectrum/pkg/logger"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 180, 240},
		},
		[]string{"route", "method", "class"},
	)

	httpInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
		[]string{"route"},
	)

	regOnce sync.Once
)

// Metrics records request counters keyed by the echo route template.
// 5xx responses are logged as errors, slow ones as warnings.
func Metrics(l *logger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	regOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			httpInFlight.WithLabelValues(route).Inc()
			defer httpInFlight.WithLabelValues(route).Dec()
			start := time.Now()

			err := next(c)

			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			dur := time.Since(start)
			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
			httpRequestDuration.WithLabelValues(route, method, statusClass(code)).Observe(dur.Seconds())

			switch {
			case code >= 500:
				l.Error("http request failed",
					logger.String("route", route),
					logger.String("method", method),
					logger.Int("status", code),
					logger.Duration("duration_ms", dur),
				)
			case slowThreshold > 0 && dur >= slowThreshold:
				l.Warn("http request slow",
					logger.String("route", route),
					logger.String("method", method),
					logger.Int("status", code),
					logger.Duration("duration_ms", dur),
				)
			}
			return err
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
