package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pagefaves/pagefaves/internal/domain"
)

// writeEnvelope emits the sync envelope every widget endpoint speaks.
// Clients treat anything but status "success" as a soft failure, so the
// HTTP status is advisory.
func writeEnvelope(w http.ResponseWriter, httpStatus int, p domain.ServerPayload) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(p)
}

func writeError(w http.ResponseWriter, httpStatus int) {
	writeEnvelope(w, httpStatus, domain.ServerPayload{Status: "error"})
}
