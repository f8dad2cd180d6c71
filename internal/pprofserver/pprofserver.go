// Package pprofserver exposes the runtime profiling endpoints on a separate
// loopback-only listener, so they are never reachable through the public API.
package pprofserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

func newServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	return mux
}

// Launch starts a pprof server on the ipv6 loopback address ::1 and the given
// port. Errors only take down the profiling listener, not the application.
func Launch(port string, logger *slog.Logger) {
	go func() {
		addr := fmt.Sprintf("[::1]%s", port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           newServeMux(),
			ReadHeaderTimeout: time.Second,
		}
		logger.Info("starting pprof server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("pprof server stopped", "error", err.Error())
		}
	}()
}
