package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	inFlight       prometheus.Gauge
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	bookings       *prometheus.CounterVec
	registrations  prometheus.Counter
	pendingExpired prometheus.Counter
	deliveries     *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "museum_http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "museum_http_requests_total",
			Help: "HTTP requests by method and response status.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "museum_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "museum_bookings_created_total",
			Help: "Bookings created by payment method.",
		}, []string{"payment_method"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "museum_event_registrations_created_total",
			Help: "Event registrations created.",
		}),
		pendingExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "museum_bookings_expired_total",
			Help: "Unpaid bookings cancelled by the pending sweeper.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "museum_ticket_deliveries_total",
			Help: "Ticket deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inFlight,
		m.requests,
		m.duration,
		m.bookings,
		m.registrations,
		m.pendingExpired,
		m.deliveries,
	)

	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) delivered(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
}
