package dashboard

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/krillmap/dashboard/figure"
	"github.com/krillmap/dashboard/httpx"
	"github.com/krillmap/dashboard/inspect"
	"github.com/krillmap/dashboard/internal/period"
	"github.com/krillmap/dashboard/measurements"
	"github.com/krillmap/dashboard/zones"
)

// Options are the selector values offered by the UI shell.
type Options struct {
	Years          []int
	Months         []int
	DefaultYear    int
	DefaultMonth   int
	DefaultStyle   figure.Style
	PublicURL      string
	RequestTimeout time.Duration
}

// Handler serves the map dashboard: selector options, composed figures,
// point details, live recomposition over a websocket and share codes.
type Handler struct {
	source   measurements.Source
	zones    *zones.Registry
	composer *figure.Composer
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a dashboard handler.
func NewHandler(source measurements.Source, registry *zones.Registry, composer *figure.Composer, opts Options, log zerolog.Logger) *Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.DefaultStyle == "" {
		opts.DefaultStyle = figure.StyleSatellite
	}
	return &Handler{
		source:   source,
		zones:    registry,
		composer: composer,
		opts:     opts,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   16 * 1024,
			EnableCompression: true,
		},
	}
}

// Routes configures the API routes. The live socket is mounted outside the
// request timeout.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.opts.RequestTimeout))
		r.Get("/options", h.options)
		r.Get("/figure", h.getFigure)
		r.Post("/point-details", h.pointDetails)
		r.Get("/share.png", h.share)
	})
	r.Get("/live", h.live)
	return r
}

type optionsResponse struct {
	Years    []figure.Option `json:"years"`
	Months   []figure.Option `json:"months"`
	Styles   []figure.Option `json:"styles"`
	Layers   []figure.Option `json:"layers"`
	Zones    []figure.Option `json:"zones"`
	Defaults Query           `json:"defaults"`
}

func (h *Handler) options(w http.ResponseWriter, _ *http.Request) {
	resp := optionsResponse{
		Styles:   figure.StyleOptions,
		Layers:   figure.LayerOptions,
		Defaults: h.defaults(),
	}
	for _, y := range h.opts.Years {
		v := period.Period{Year: y}.YearValue()
		resp.Years = append(resp.Years, figure.Option{Value: v, Label: v})
	}
	for _, m := range h.opts.Months {
		p := period.Period{Month: time.Month(m)}
		resp.Months = append(resp.Months, figure.Option{Value: p.MonthValue(), Label: p.Month.String()})
	}
	for _, d := range h.zones.Descriptors() {
		resp.Zones = append(resp.Zones, figure.Option{Value: d.ID, Label: d.Label})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) getFigure(w http.ResponseWriter, r *http.Request) {
	resp, status := h.build(r.Context(), queryFromRequest(r))
	httpx.WriteJSON(w, status, resp)
}

type detailsResponse struct {
	Details []inspect.Detail `json:"details"`
	Texts   []string         `json:"texts"`
}

func (h *Handler) pointDetails(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	attrs, err := inspect.ParseClick(body)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	details := inspect.Format(attrs)
	httpx.WriteJSON(w, http.StatusOK, detailsResponse{Details: details, Texts: inspect.Texts(details)})
}
