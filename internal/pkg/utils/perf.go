package utils

import (
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunPerfEndpoint serves pprof and prometheus metrics on debug.port, blocks until the server fails.
// It is used by the services that have no http port of their own
func RunPerfEndpoint() {
	port := goapp.Config.GetInt("debug.port")
	if port <= 0 {
		goapp.Log.Info().Msg("no debug.port provided, skip debug endpoint")
		return
	}
	goapp.Log.Info().Int("port", port).Msg("Starting debug http endpoint")
	srv := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: newPerfMux(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		goapp.Log.Error().Err(err).Msg("can't start debug endpoint")
	}
}

func newPerfMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
