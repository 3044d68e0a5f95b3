// Package debug provides the handlers served on the internal debug port.
package debug

import (
	"net/http"
	"net/http/pprof"

	"github.com/arl/statsviz"
)

// Mux registers the pprof and statsviz handlers on a new mux, to be served
// on the debug host only.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Register only fails on invalid options.
	_ = statsviz.Register(mux)

	return mux
}
