package domain

// Bookmark represents one saved page reference.
//
// The JSON field names are the wire contract shared between the widget,
// the sync server and share-import payloads. They must round-trip exactly
// and must not be renamed.
type Bookmark struct {
	// URL is always stored origin-relative: path+query+fragment with a
	// leading slash. External origins are rejected during validation.
	URL string `json:"url"`

	// Title is plain text (all markup stripped). Entries whose title
	// sanitizes to empty are invalid.
	Title string `json:"title"`

	// ImageLink is optional; same relative-URL form as URL, or "".
	ImageLink string `json:"imagelink"`

	// Description is optional plain text, may be "".
	Description string `json:"description"`

	// TS is the creation time in epoch milliseconds.
	TS int64 `json:"ts"`
}

// SharePayload is the one-shot import payload staged by a share link and
// consumed once by the next state-manager initialization.
type SharePayload struct {
	Code      string     `json:"code,omitempty"`
	ShareLink string     `json:"shareLink,omitempty"`
	Bookmarks []Bookmark `json:"bookmarks"`
}

// ServerPayload is the response envelope returned by both server endpoints.
type ServerPayload struct {
	Status            string     `json:"status"`
	Code              string     `json:"code"`
	ShareLink         string     `json:"shareLink"`
	Bookmarks         []Bookmark `json:"bookmarks,omitempty"`
	NumberOfBookmarks int        `json:"numberOfBookmarks"`
}

// StatusSuccess is the envelope status value the client trusts. Any other
// value means "do not merge, do not trust the count".
const StatusSuccess = "success"

// SyncStatus tracks how the local list relates to the server.
type SyncStatus int

const (
	// SyncUnknown is the state before any server round-trip.
	SyncUnknown SyncStatus = iota
	// SyncInSync means the last ping or full sync matched the server count.
	SyncInSync
	// SyncOutOfSync means a local mutation happened or the server count
	// disagreed with the local one.
	SyncOutOfSync
)

func (s SyncStatus) String() string {
	switch s {
	case SyncInSync:
		return "in_sync"
	case SyncOutOfSync:
		return "out_of_sync"
	default:
		return "unknown"
	}
}
