package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/metrics"
	"github.com/pagefaves/pagefaves/internal/records"
)

// Share handles GET /api/share/{token}: it resolves a share token to
// its record and returns the list read-only. The owner's code is not
// leaked; recipients get their own code on their first sync.
func Share(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		ctx := r.Context()

		code, err := d.Records.CodeForShareToken(ctx, token)
		if errors.Is(err, records.ErrNotFound) {
			metrics.ShareResolutionsTotal.WithLabelValues("miss").Inc()
			writeError(w, http.StatusNotFound)
			return
		}
		if err != nil {
			d.Logger.Error("share token lookup failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		rec, err := d.Records.Get(ctx, code)
		if err != nil {
			// Token index pointing at a vanished record: treat as a miss.
			metrics.ShareResolutionsTotal.WithLabelValues("miss").Inc()
			writeError(w, http.StatusNotFound)
			return
		}

		metrics.ShareResolutionsTotal.WithLabelValues("hit").Inc()
		writeEnvelope(w, http.StatusOK, domain.ServerPayload{
			Status:            domain.StatusSuccess,
			ShareLink:         shareLink(d, rec.ShareToken),
			Bookmarks:         rec.Bookmarks,
			NumberOfBookmarks: len(rec.Bookmarks),
		})
	}
}
