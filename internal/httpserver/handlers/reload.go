package handlers

import (
	"net/http"

	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/logger"
)

// Reload triggers a manual re-read of the seed import file.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReloadTrigger == nil {
			w.WriteHeader(http.StatusNotImplemented)
			_, _ = w.Write([]byte("no import file configured\n"))
			return
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual import reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("reload triggered\n"))
		default:
			d.Logger.Warn("import reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("reload already in progress\n"))
		}
	}
}
