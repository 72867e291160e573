// Package staticserve is the process a static-kind app actually runs.
// The classifier emits no runnable command for static projects, so the
// deployment pipeline spawns the supervisor's own binary back into this
// subcommand instead of depending on a system webserver being installed.
package staticserve

import (
	"fmt"
	"net/http"
)

// Subcommand is the argv[0]-adjacent marker cmd/supervisord looks for
// before falling through to normal startup.
const Subcommand = "__serve-static__"

// Run serves dir over HTTP on port until the process is killed.
func Run(dir string, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(dir)))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return srv.ListenAndServe()
}
