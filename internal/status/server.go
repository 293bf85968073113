package status

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pgrollback/internal/metrics"
)

// Page is the data the status page template renders. Callers (cmd/pgrollback)
// fill this in from live state before each request, since the Backend
// Session actor's state isn't safe to read from any goroutine but its own.
type Page struct {
	BackendAddr string
	BackendUp   bool
	ClientCount int
}

// PageSource supplies a fresh Page on every request.
type PageSource func() Page

// Handler builds the status surface's HTTP mux: /healthz, /metrics,
// /favicon.ico, and a one-page status view at /.
func Handler(m *metrics.Collector, pages PageSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/x-icon")
		w.Write(favicon())
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		p := pages()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, statusPageTemplate, p.BackendAddr, upLabel(p.BackendUp), p.ClientCount)
	})

	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	return mux
}

func upLabel(up bool) string {
	if up {
		return "connected"
	}
	return "not connected"
}

const statusPageTemplate = `<!DOCTYPE html>
<html>
<head><title>pgrollback</title><link rel="icon" href="/favicon.ico"></head>
<body>
<h1>pgrollback</h1>
<table>
<tr><td>backend</td><td>%s</td></tr>
<tr><td>status</td><td>%s</td></tr>
<tr><td>attached clients</td><td>%d</td></tr>
</table>
<p><a href="/metrics">/metrics</a></p>
</body>
</html>
`
