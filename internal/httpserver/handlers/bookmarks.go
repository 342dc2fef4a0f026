package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/httpserver/deps"
	"github.com/pagefaves/pagefaves/internal/logger"
	"github.com/pagefaves/pagefaves/internal/metrics"
	"github.com/pagefaves/pagefaves/internal/records"
)

// maxSyncBody caps the request body; a list of a few thousand bookmarks
// fits comfortably.
const maxSyncBody = 1 << 20

type bookmarksRequest struct {
	Code      string            `json:"code"`
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

// Bookmarks handles POST /api/bookmarks: it merges the posted list into
// the record for the given code (creating the record and minting its
// share token on first contact) and returns the merged view.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarksRequest
		body := http.MaxBytesReader(w, r.Body, maxSyncBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			metrics.SyncsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		now := d.Now()

		// A widget that lost its storage posts with a blank code; issue
		// a fresh one and answer with it so the client can adopt it.
		code := strings.TrimSpace(req.Code)
		issued := false
		if code == "" {
			code = domain.NewCode()
			issued = true
		}

		var (
			rec *records.Record
			err = records.ErrNotFound
		)
		if !issued {
			rec, err = d.Records.Get(ctx, code)
		}
		created := false
		switch {
		case errors.Is(err, records.ErrNotFound):
			rec = &records.Record{
				Code:       code,
				ShareToken: uuid.NewString(),
				CreatedAt:  now,
			}
			created = true
		case err != nil:
			d.Logger.Error("record lookup failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		// URL-keyed merge, posted entries win. Invalid entries are
		// dropped rather than failing the whole sync.
		merged := rec.Bookmarks
		index := make(map[string]int, len(merged))
		for i, b := range merged {
			index[b.URL] = i
		}
		for _, in := range req.Bookmarks {
			clean, ok := d.Normalizer.CleanBookmark(in, now)
			if !ok {
				continue
			}
			if i, exists := index[clean.URL]; exists {
				merged[i] = clean
				continue
			}
			index[clean.URL] = len(merged)
			merged = append(merged, clean)
		}

		rec.Bookmarks = merged
		rec.UpdatedAt = now
		rec.LastSeenAt = now
		if err := d.Records.Save(ctx, rec); err != nil {
			d.Logger.Error("record save failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		if created {
			metrics.SyncsTotal.WithLabelValues("created").Inc()
		} else {
			metrics.SyncsTotal.WithLabelValues("merged").Inc()
		}

		writeEnvelope(w, http.StatusOK, domain.ServerPayload{
			Status:            domain.StatusSuccess,
			Code:              rec.Code,
			ShareLink:         shareLink(d, rec.ShareToken),
			Bookmarks:         merged,
			NumberOfBookmarks: len(merged),
		})
	}
}

func shareLink(d deps.Deps, token string) string {
	if token == "" || d.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(d.PublicBaseURL, "/") + "/api/share/" + token
}
