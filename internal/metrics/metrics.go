// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_http_requests_total",
		Help: "Total HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidtube_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RelationTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_relation_toggles_total",
		Help: "Relation toggles by kind and resulting state (on/off)",
	}, []string{"kind", "state"})

	MediaUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_media_uploads_total",
		Help: "Media uploads to the object store by folder and outcome",
	}, []string{"folder", "status"})

	MediaUploadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_media_upload_bytes_total",
		Help: "Bytes uploaded to the object store by folder",
	}, []string{"folder"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_login_attempts_total",
		Help: "Login attempts by outcome (success, unknown_user, wrong_password, rate_limited)",
	}, []string{"outcome"})

	TokenRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_token_rotations_total",
		Help: "Refresh token rotations by outcome (success, rejected)",
	}, []string{"outcome"})
)
