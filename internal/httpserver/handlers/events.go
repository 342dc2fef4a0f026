package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/metrics"
	"github.com/pagefaves/pagefaves/internal/records"
)

// eventLabel buckets the client-supplied event type into the known set
// so arbitrary input cannot mint new metric series.
func eventLabel(typ string) string {
	switch typ {
	case "added", "removed", "reordered":
		return typ
	default:
		return "other"
	}
}

type eventRequest struct {
	Code    string          `json:"code"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	At      int64           `json:"at"`
}

// Events handles POST /api/events: a lightweight activity ping. The
// response carries the server-side bookmark count, which is what lets
// clients detect drift without shipping the whole list. An unknown code
// is fine, it just counts as zero; the record appears on first full
// sync.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		body := http.MaxBytesReader(w, r.Body, maxSyncBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest)
			return
		}
		code := strings.TrimSpace(req.Code)
		typ := strings.TrimSpace(req.Type)
		if code == "" || typ == "" {
			writeError(w, http.StatusBadRequest)
			return
		}

		metrics.EventsTotal.WithLabelValues(eventLabel(typ)).Inc()

		ctx := r.Context()
		count := 0
		token := ""

		rec, err := d.Records.Get(ctx, code)
		switch {
		case errors.Is(err, records.ErrNotFound):
			// No record yet: the widget has events before its first sync.
		case err != nil:
			d.Logger.Error("record lookup failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		default:
			rec.LastSeenAt = d.Now()
			if err := d.Records.Save(ctx, rec); err != nil {
				d.Logger.Warn("record touch failed", logger.Error(err))
			}
			count = len(rec.Bookmarks)
			token = rec.ShareToken
		}

		writeEnvelope(w, http.StatusOK, domain.ServerPayload{
			Status:            domain.StatusSuccess,
			Code:              code,
			ShareLink:         shareLink(d, token),
			NumberOfBookmarks: count,
		})
	}
}
