package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/krillmap/dashboard/figure"
	"github.com/krillmap/dashboard/httpx"
	"github.com/krillmap/dashboard/internal/period"
	"github.com/krillmap/dashboard/measurements"
	"github.com/krillmap/dashboard/zones"
)

// Query is one set of selector values, as sent by the page or a socket
// message. Blank fields fall back to the configured defaults.
type Query struct {
	Year  string   `json:"year"`
	Month string   `json:"month"`
	Style string   `json:"style"`
	Layer string   `json:"layer"`
	Zones []string `json:"zones"`
}

func queryFromRequest(r *http.Request) Query {
	q := r.URL.Query()
	return Query{
		Year:  q.Get("year"),
		Month: q.Get("month"),
		Style: q.Get("style"),
		Layer: q.Get("layer"),
		Zones: httpx.QueryList(r, "zone"),
	}
}

// Values encodes the query for a dashboard link.
func (q Query) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	set("year", q.Year)
	set("month", q.Month)
	set("style", q.Style)
	set("layer", q.Layer)
	set("zone", strings.Join(q.Zones, ","))
	return v
}

func (h *Handler) defaults() Query {
	p := period.Period{Year: h.opts.DefaultYear, Month: time.Month(h.opts.DefaultMonth)}
	return Query{
		Year:  p.YearValue(),
		Month: p.MonthValue(),
		Style: string(h.opts.DefaultStyle),
		Layer: figure.AllLayers,
		Zones: []string{},
	}
}

func (h *Handler) resolve(q Query) (period.Period, figure.Selection, error) {
	def := h.defaults()
	year, month := q.Year, q.Month
	if strings.TrimSpace(year) == "" {
		year = def.Year
	}
	if strings.TrimSpace(month) == "" {
		month = def.Month
	}
	p, err := period.Parse(year, month)
	if err != nil {
		return period.Period{}, figure.Selection{}, err
	}
	layers, err := figure.ParseLayers(q.Layer)
	if err != nil {
		return period.Period{}, figure.Selection{}, err
	}
	for _, id := range q.Zones {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if _, err := h.zones.Lookup(id); err != nil {
			return period.Period{}, figure.Selection{}, err
		}
	}
	return p, figure.Selection{
		Layers: layers,
		Style:  figure.ParseStyle(q.Style, h.opts.DefaultStyle),
		Zones:  q.Zones,
	}, nil
}

type figureResponse struct {
	Period string         `json:"period,omitempty"`
	Figure *figure.Figure `json:"figure,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// build loads and composes the figure for q. Missing data still yields an
// empty figure alongside a 404 status.
func (h *Handler) build(ctx context.Context, q Query) (figureResponse, int) {
	p, sel, err := h.resolve(q)
	if err != nil {
		return figureResponse{Error: err.Error()}, http.StatusBadRequest
	}

	resp := figureResponse{Period: p.Key()}
	status := http.StatusOK
	ds, err := h.source.Load(ctx, p)
	switch {
	case errors.Is(err, measurements.ErrNoData):
		status = http.StatusNotFound
		resp.Error = fmt.Sprintf("no data for %s", p)
		ds = measurements.NewDataset(p, nil)
	case err != nil:
		h.log.Error().Err(err).Str("period", p.Key()).Msg("load measurements failed")
		resp.Error = "failed to load measurements"
		return resp, http.StatusInternalServerError
	}

	fig, err := h.composer.Compose(ds, sel)
	if err != nil {
		code := composeStatus(err)
		if code == http.StatusInternalServerError {
			h.log.Error().Err(err).
				Str("period", p.Key()).
				Strs("zones", sel.Zones).
				Msg("compose figure failed")
			resp.Error = "failed to compose figure"
		} else {
			resp.Error = err.Error()
		}
		return resp, code
	}
	resp.Figure = fig
	return resp, status
}

func composeStatus(err error) int {
	switch {
	case errors.Is(err, figure.ErrUnknownLayer),
		errors.Is(err, figure.ErrTooManyLayers),
		errors.Is(err, zones.ErrUnknownZone):
		return http.StatusBadRequest
	case errors.Is(err, figure.ErrAccessTokenRequired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
