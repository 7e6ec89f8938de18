package dashboard

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/krillmap/dashboard/httpx"
)

const (
	defaultShareSize = 256
	minShareSize     = 64
	maxShareSize     = 1024
)

// share renders a QR code linking to the dashboard with the requested
// selection preloaded.
func (h *Handler) share(w http.ResponseWriter, r *http.Request) {
	q := queryFromRequest(r)
	if _, _, err := h.resolve(q); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	size := defaultShareSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minShareSize || n > maxShareSize {
			httpx.Error(w, http.StatusBadRequest, fmt.Sprintf("size must be between %d and %d", minShareSize, maxShareSize))
			return
		}
		size = n
	}

	link := h.shareURL(r, q)
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		h.log.Error().Err(err).Str("link", link).Msg("encode share code failed")
		httpx.Error(w, http.StatusInternalServerError, "failed to encode share code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Share-URL", link)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) shareURL(r *http.Request, q Query) string {
	base := strings.TrimRight(h.opts.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	link := base + "/"
	if enc := q.Values().Encode(); enc != "" {
		link += "?" + enc
	}
	return link
}
