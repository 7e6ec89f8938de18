package dashboard

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/krillmap/dashboard/httpx"
	"github.com/krillmap/dashboard/inspect"
)

//go:embed templates/index.html
var templateFS embed.FS

var shellTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type shellData struct {
	Title    string
	Heading  string
	Defaults Query
	Details  []inspect.Detail
}

// Shell serves the dashboard page. Selector values in the URL override the
// configured defaults so shared links reopen the same view.
func (h *Handler) Shell(w http.ResponseWriter, r *http.Request) {
	defaults := h.defaults()
	q := queryFromRequest(r)
	if q.Year != "" {
		defaults.Year = q.Year
	}
	if q.Month != "" {
		defaults.Month = q.Month
	}
	if q.Style != "" {
		defaults.Style = q.Style
	}
	if q.Layer != "" {
		defaults.Layer = q.Layer
	}
	if len(q.Zones) > 0 {
		defaults.Zones = q.Zones
	}

	var buf bytes.Buffer
	err := shellTemplate.Execute(&buf, shellData{
		Title:    "License to Krill",
		Heading:  "Estimation of krill abundance in the Antarctic Peninsula",
		Defaults: defaults,
		Details:  inspect.Format(nil),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("render shell failed")
		httpx.Error(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
