// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves read-only queries over the executed state and logs.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/citahub/cita-executor/api/accounts"
	"github.com/citahub/cita-executor/api/logs"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/logdb"
	"github.com/citahub/cita-executor/metrics"
	"github.com/citahub/cita-executor/muxdb"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	LogsLimit       uint64
	EnableReqLogger bool
	EnableMetrics   bool
}

// New return api router. logDB may be nil, leaving /logs unmounted.
func New(
	db *muxdb.MuxDB,
	head accounts.HeadFunc,
	logDB *logdb.LogDB,
	opts Options,
) http.HandlerFunc {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	accounts.New(db, head).
		Mount(router, "/accounts")
	if logDB != nil {
		logs.New(logDB, opts.LogsLimit).
			Mount(router, "/logs")
	}

	if opts.EnableMetrics {
		// nil while metrics are off
		if h := metrics.HTTPHandler(); h != nil {
			router.Path("/metrics").Methods(http.MethodGet).Handler(h)
		}
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger {
		handler = RequestLoggerHandler(handler, logger)
	}

	return handler.ServeHTTP
}
