// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logs

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/api/utils"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/logdb"
)

type Logs struct {
	logDB *logdb.LogDB
	limit uint64
}

// New creates the log query handler. limit caps the logs returned per query.
func New(logDB *logdb.LogDB, limit uint64) *Logs {
	return &Logs{
		logDB,
		limit,
	}
}

func parseUint(query url.Values, name string, def uint64) (uint64, error) {
	s := query.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, utils.BadRequest(errors.WithMessage(err, name))
	}
	return v, nil
}

func (l *Logs) parseFilter(query url.Values) (*logdb.LogFilter, error) {
	var criteria logdb.LogCriteria
	if s := query.Get("address"); s != "" {
		addr, err := cita.ParseAddress(s)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "address"))
		}
		criteria.Address = addr
	}
	for i := range criteria.Topics {
		name := fmt.Sprintf("topic%d", i)
		if s := query.Get(name); s != "" {
			topic, err := cita.ParseBytes32(s)
			if err != nil {
				return nil, utils.BadRequest(errors.WithMessage(err, name))
			}
			criteria.Topics[i] = &topic
		}
	}

	from, err := parseUint(query, "from", 0)
	if err != nil {
		return nil, err
	}
	to, err := parseUint(query, "to", math.MaxUint32)
	if err != nil {
		return nil, err
	}
	if to < from {
		return nil, utils.BadRequest(errors.New("to: less than from"))
	}
	offset, err := parseUint(query, "offset", 0)
	if err != nil {
		return nil, err
	}
	limit, err := parseUint(query, "limit", l.limit)
	if err != nil {
		return nil, err
	}
	if limit > l.limit {
		return nil, utils.BadRequest(errors.Errorf("limit: exceeds %d", l.limit))
	}

	filter := &logdb.LogFilter{
		CriteriaSet: []*logdb.LogCriteria{&criteria},
		Range:       &logdb.Range{From: from, To: to},
		Options:     &logdb.Options{Offset: offset, Limit: limit},
		Order:       logdb.ASC,
	}
	switch query.Get("order") {
	case "", "asc":
	case "desc":
		filter.Order = logdb.DESC
	default:
		return nil, utils.BadRequest(errors.New("order: must be asc or desc"))
	}
	return filter, nil
}

func (l *Logs) handleFilterLogs(w http.ResponseWriter, req *http.Request) error {
	filter, err := l.parseFilter(req.URL.Query())
	if err != nil {
		return err
	}
	logs, err := l.logDB.FilterLogs(req.Context(), filter)
	if err != nil {
		return err
	}
	out := make([]*Log, 0, len(logs))
	for _, log := range logs {
		out = append(out, convertLog(log))
	}
	return utils.WriteJSON(w, out)
}

func (l *Logs) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodGet).Name("logs_filter").HandlerFunc(utils.WrapHandlerFunc(l.handleFilterLogs))
}
