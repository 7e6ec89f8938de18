package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/krillmap/dashboard/figure"
	"github.com/krillmap/dashboard/internal/period"
	"github.com/krillmap/dashboard/measurements"
	"github.com/krillmap/dashboard/zones"
)

type stubSource struct {
	data map[string]*measurements.Dataset
	err  error
}

func (s stubSource) Load(_ context.Context, p period.Period) (*measurements.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	ds, ok := s.data[p.Key()]
	if !ok {
		return nil, measurements.ErrNoData
	}
	return ds, nil
}

func testSource() stubSource {
	p := period.Period{Year: 2024, Month: time.January}
	return stubSource{data: map[string]*measurements.Dataset{
		p.Key(): measurements.NewDataset(p, []measurements.Record{
			{Latitude: -60.5, Longitude: -45.1, Krill: 8, Salinity: 34.2, Temperature: 3.142, SeaSurfaceHeight: 1.05, Chlorophyll: 0.92, CurrentU: 0.3, CurrentV: 0.4},
			{Latitude: -61.2, Longitude: -46.3, Krill: 10.5, Salinity: 34.0, Temperature: 2.8, SeaSurfaceHeight: 1.0, Chlorophyll: 0.7, CurrentU: 0.1, CurrentV: 0.1},
		}),
	}}
}

func newTestRouter(t *testing.T, source measurements.Source, token string) http.Handler {
	t.Helper()
	registry, err := zones.NewRegistry(fstest.MapFS{
		"protected.json":                   {Data: []byte(`{"type":"FeatureCollection","features":[]}`)},
		"ssmu.geojson":                     {Data: []byte(`{"type":"FeatureCollection","features":[]}`)},
		"restricted.json":                  {Data: []byte(`{"type":"FeatureCollection","features":[]}`)},
		"vulnerable_marine_ecosystems.csv": {Data: []byte("Latitud,Longitud\n-62.1,-58.9\n")},
	}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	composer := figure.NewComposer(registry, figure.Config{AccessToken: token})
	h := NewHandler(source, registry, composer, Options{
		Years:        []int{2023, 2024},
		Months:       []int{1, 2, 12},
		DefaultYear:  2024,
		DefaultMonth: 1,
		DefaultStyle: figure.StyleSatellite,
		PublicURL:    "https://krill.example.org",
	}, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/", h.Shell)
	r.Mount("/api", h.Routes())
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type figureBody struct {
	Period string          `json:"period"`
	Error  string          `json:"error"`
	Figure json.RawMessage `json:"figure"`
}

func decodeFigure(t *testing.T, rec *httptest.ResponseRecorder) (figureBody, *figure.Figure) {
	t.Helper()
	var body figureBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if len(body.Figure) == 0 {
		return body, nil
	}
	var fig struct {
		Data []struct {
			Type       string `json:"type"`
			Name       string `json:"name"`
			Colorscale string `json:"colorscale"`
		} `json:"data"`
		Layout struct {
			Mapbox struct {
				Style  string `json:"style"`
				Layers []struct {
					SourceType string `json:"sourcetype"`
					Color      string `json:"color"`
				} `json:"layers"`
			} `json:"mapbox"`
		} `json:"layout"`
	}
	if err := json.Unmarshal(body.Figure, &fig); err != nil {
		t.Fatalf("decode figure: %v", err)
	}
	out := &figure.Figure{}
	for _, d := range fig.Data {
		out.Data = append(out.Data, figure.Trace{Type: d.Type, Name: d.Name, Colorscale: d.Colorscale})
	}
	out.Layout.Mapbox.Style = fig.Layout.Mapbox.Style
	for _, l := range fig.Layout.Mapbox.Layers {
		out.Layout.Mapbox.Layers = append(out.Layout.Mapbox.Layers, figure.MapLayer{SourceType: l.SourceType, Color: l.Color})
	}
	return body, out
}

func TestOptions(t *testing.T) {
	rec := get(t, newTestRouter(t, testSource(), ""), "/api/options")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body optionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Years) != 2 || body.Months[2] != (figure.Option{Value: "12", Label: "December"}) {
		t.Errorf("periods = %+v %+v", body.Years, body.Months)
	}
	if len(body.Zones) != 4 || body.Zones[3].Label != "Vulnerable marine ecosystems" {
		t.Errorf("zones = %+v", body.Zones)
	}
	if len(body.Layers) != len(figure.LayerOptions) || len(body.Styles) != 2 {
		t.Errorf("layers/styles = %+v %+v", body.Layers, body.Styles)
	}
	if body.Defaults.Year != "2024" || body.Defaults.Month != "01" || body.Defaults.Style != "satellite" || body.Defaults.Layer != "all" {
		t.Errorf("defaults = %+v", body.Defaults)
	}
}

func TestFigure(t *testing.T) {
	router := newTestRouter(t, testSource(), "pk.test")

	rec := get(t, router, "/api/figure?year=2024&month=01&style=simple&layer=Krill&zone=protected-zone&zone=ecosystem-zone")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body, fig := decodeFigure(t, rec)
	if body.Period != "2024-01" || body.Error != "" {
		t.Fatalf("body = %+v", body)
	}
	if len(fig.Data) != 2 || fig.Data[0].Colorscale != "darkmint" || fig.Data[1].Type != figure.TraceScatter {
		t.Fatalf("traces = %+v", fig.Data)
	}
	if fig.Layout.Mapbox.Style != "outdoors" || len(fig.Layout.Mapbox.Layers) != 1 || fig.Layout.Mapbox.Layers[0].Color != "yellow" {
		t.Fatalf("mapbox = %+v", fig.Layout.Mapbox)
	}

	rec = get(t, router, "/api/figure")
	if rec.Code != http.StatusOK {
		t.Fatalf("defaults status = %d body = %s", rec.Code, rec.Body.String())
	}
	_, fig = decodeFigure(t, rec)
	if len(fig.Data) != 2 || fig.Layout.Mapbox.Style != "white-bg" || fig.Layout.Mapbox.Layers[0].SourceType != "raster" {
		t.Fatalf("default figure = %+v", fig)
	}
}

func TestFigureMissingPeriod(t *testing.T) {
	rec := get(t, newTestRouter(t, testSource(), ""), "/api/figure?year=2023&month=12&style=simple")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body, fig := decodeFigure(t, rec)
	if !strings.Contains(body.Error, "December 2023") {
		t.Fatalf("error = %q", body.Error)
	}
	if fig == nil || len(fig.Data) != 2 {
		t.Fatalf("expected an empty figure payload, got %+v", fig)
	}
}

func TestFigureErrors(t *testing.T) {
	cases := []struct {
		name   string
		source measurements.Source
		token  string
		target string
		status int
	}{
		{"unknown layer", testSource(), "", "/api/figure?style=simple&layer=Depth", http.StatusBadRequest},
		{"too many layers", testSource(), "", "/api/figure?style=simple&layer=Krill,SSTm,SSSm,ZOSm,CHLm", http.StatusBadRequest},
		{"unknown zone", testSource(), "", "/api/figure?style=simple&zone=fishing-zone", http.StatusBadRequest},
		{"bad year", testSource(), "", "/api/figure?year=24&month=01", http.StatusBadRequest},
		{"bad month", testSource(), "", "/api/figure?year=2024&month=13", http.StatusBadRequest},
		{"no token", testSource(), "", "/api/figure?style=satellite", http.StatusServiceUnavailable},
		{"source failure", stubSource{err: errors.New("connection refused")}, "", "/api/figure?style=simple", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, newTestRouter(t, tc.source, tc.token), tc.target)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == nil {
				t.Fatalf("expected an error envelope, got %s", rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "connection refused") {
				t.Fatal("internal error details leaked to the client")
			}
		})
	}
}

func TestPointDetails(t *testing.T) {
	router := newTestRouter(t, testSource(), "")
	cases := []struct {
		body   string
		status int
		texts  string
	}{
		{`{"points":[{"customdata":[8.0, 34.2, 3.142, 1.05, 0.92]}]}`, http.StatusOK, "8.0 g/m²|34.2 psu|3.142°C|1.05 m|0.92 mg/m³"},
		{`{"customdata":null}`, http.StatusOK, "- g/m²|- psu|-°C|- m|- mg/m³"},
		{`{"customdata":"krill"}`, http.StatusBadRequest, ""},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/point-details", strings.NewReader(c.body)))
		if rec.Code != c.status {
			t.Fatalf("%s: status = %d", c.body, rec.Code)
		}
		if c.status != http.StatusOK {
			continue
		}
		var resp detailsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got := strings.Join(resp.Texts, "|"); got != c.texts {
			t.Errorf("%s: texts = %q", c.body, got)
		}
	}
}

func TestShare(t *testing.T) {
	router := newTestRouter(t, testSource(), "")

	rec := get(t, router, "/api/share.png?year=2024&month=01&layer=Krill&zone=protected-zone,ecosystem-zone&size=128")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected a png, got %q", rec.Header().Get("Content-Type"))
	}
	want := "https://krill.example.org/?layer=Krill&month=01&year=2024&zone=protected-zone%2Cecosystem-zone"
	if got := rec.Header().Get("X-Share-URL"); got != want {
		t.Fatalf("share url = %q, want %q", got, want)
	}

	for _, target := range []string{
		"/api/share.png?size=10",
		"/api/share.png?size=big",
		"/api/share.png?layer=Depth",
		"/api/share.png?zone=protected-zone,fishing-zone",
	} {
		if rec := get(t, router, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestShell(t *testing.T) {
	rec := get(t, newTestRouter(t, testSource(), ""), "/?layer=Krill&zone=ecosystem-zone")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{
		"<title>License to Krill</title>",
		`"layer":"Krill"`,
		`"zones":["ecosystem-zone"]`,
		`"year":"2024"`,
		`id="detail-SSTm"`,
		"-°C",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %s", want)
		}
	}
}

func TestLive(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, testSource(), ""))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	type reply struct {
		Status int             `json:"status"`
		Period string          `json:"period"`
		Error  string          `json:"error"`
		Figure json.RawMessage `json:"figure"`
	}
	exchange := func(msg string) reply {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var r reply
		if err := conn.ReadJSON(&r); err != nil {
			t.Fatalf("read: %v", err)
		}
		return r
	}

	r := exchange(`{"year":"2024","month":"01","style":"simple","layer":"SSTm","zones":["management-zone"]}`)
	if r.Status != http.StatusOK || r.Period != "2024-01" || !bytes.Contains(r.Figure, []byte(`"colorscale":"thermal"`)) {
		t.Fatalf("first reply = %d %s %s", r.Status, r.Period, r.Error)
	}

	r = exchange(`{"year":"2023","month":"02","style":"simple"}`)
	if r.Status != http.StatusNotFound || len(r.Figure) == 0 {
		t.Fatalf("missing period reply = %+v", r)
	}

	r = exchange(`not json`)
	if r.Status != http.StatusBadRequest || !strings.Contains(r.Error, "invalid selection") {
		t.Fatalf("invalid reply = %+v", r)
	}

	r = exchange(`{"year":"2024","month":"01","colour":"red"}`)
	if r.Status != http.StatusBadRequest || !strings.Contains(r.Error, "invalid selection") {
		t.Fatalf("unknown field reply = %+v", r)
	}

	r = exchange(`{"style":"simple"} {"style":"satellite"}`)
	if r.Status != http.StatusBadRequest {
		t.Fatalf("trailing payload reply = %+v", r)
	}

	r = exchange(`{"style":"satellite"}`)
	if r.Status != http.StatusServiceUnavailable {
		t.Fatalf("satellite without token = %+v", r)
	}
}
