// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin serves runtime administration of a running executor.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/api/utils"
	"github.com/citahub/cita-executor/log"
)

var levels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"crit":  log.LevelCrit,
}

type logLevelRequest struct {
	Level string `json:"level"`
}

type logLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

// HTTPHandler serves GET and POST /admin/loglevel on logLevel.
func HTTPHandler(logLevel *slog.LevelVar) http.Handler {
	router := mux.NewRouter()
	sub := router.PathPrefix("/admin").Subrouter()

	sub.Path("/loglevel").
		Methods(http.MethodGet).
		HandlerFunc(utils.WrapHandlerFunc(func(w http.ResponseWriter, _ *http.Request) error {
			return utils.WriteJSON(w, logLevelResponse{CurrentLevel: logLevel.Level().String()})
		}))
	sub.Path("/loglevel").
		Methods(http.MethodPost).
		HandlerFunc(utils.WrapHandlerFunc(func(w http.ResponseWriter, req *http.Request) error {
			var body logLevelRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return utils.BadRequest(errors.WithMessage(err, "body"))
			}
			level, ok := levels[strings.ToLower(body.Level)]
			if !ok {
				return utils.BadRequest(errors.New("invalid verbosity level"))
			}
			logLevel.Set(level)
			return utils.WriteJSON(w, logLevelResponse{CurrentLevel: logLevel.Level().String()})
		}))

	return handlers.CompressHandler(router)
}
