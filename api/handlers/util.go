package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"clubhub/core/auth"
	"clubhub/core/store"

	qrcode "github.com/skip2/go-qrcode"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionFromContext(ctx context.Context) *store.SessionRecord {
	v, _ := ctx.Value(auth.SessionContextKey).(*store.SessionRecord)
	return v
}

func userFromContext(ctx context.Context) *store.User {
	v, _ := ctx.Value(auth.UserContextKey).(*store.User)
	return v
}

// clientIPFromRequest returns the peer address without the port. Proxy
// headers are resolved by the server middleware before handlers run.
func clientIPFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Real-IP"); strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return strings.TrimSpace(ip)
}

// qrDataURI renders the provisioning URI as an inline PNG suitable for
// an <img src>.
func qrDataURI(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
