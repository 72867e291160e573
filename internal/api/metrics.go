package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func prometheusHandler(gatherer *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
