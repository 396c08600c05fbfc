package relay

import (
	"net/http"
	"net/url"
)

const keyParam = "roomId"

// RoomKey resolves the room for an incoming connection: the roomId
// query param of the page that opened the socket, then of the request
// itself. Any parse failure falls back to def, never an error.
func RoomKey(r *http.Request, def string) string {
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			if id := u.Query().Get(keyParam); id != "" {
				return id
			}
		}
	}
	if id := r.URL.Query().Get(keyParam); id != "" {
		return id
	}
	return def
}
