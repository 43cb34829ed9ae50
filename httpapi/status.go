// Package httpapi exposes discovery engine introspection over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlinvill/distributedlock/protocol"
)

// StatusServer wraps a discovery engine and provides read-only access to
// its identity and peer set, plus Prometheus metrics.
type StatusServer struct {
	engine *protocol.Engine
	logger log.Logger
	*mux.Router
}

var _ http.Handler = (*StatusServer)(nil)

// NewStatusServer returns a usable StatusServer wrapping the passed
// engine.
func NewStatusServer(engine *protocol.Engine, logger log.Logger) *StatusServer {
	ss := &StatusServer{
		engine: engine,
		logger: logger,
	}
	r := mux.NewRouter()
	{
		r.StrictSlash(true)
		r.Methods("GET").Path("/whoami").HandlerFunc(ss.handleWhoAmI)
		r.Methods("GET").Path("/peers").HandlerFunc(ss.handlePeers)
		r.Methods("GET").Path("/state").HandlerFunc(ss.handleState)
		r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	}
	ss.Router = r
	return ss
}

func (ss *StatusServer) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ss.respond(w, string(ss.engine.WhoAmI()))
}

func (ss *StatusServer) handlePeers(w http.ResponseWriter, r *http.Request) {
	ss.respond(w, ss.engine.Peers().List())
}

func (ss *StatusServer) handleState(w http.ResponseWriter, r *http.Request) {
	ss.respond(w, ss.engine.State())
}

func (ss *StatusServer) respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Error(ss.logger).Log("err", err)
	}
}
