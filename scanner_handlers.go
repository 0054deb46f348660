package main

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	tr, err := s.be.Sweep(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	if tr.X == nil {
		tr = backend.SweepTrace{X: []float64{}, Y: []float64{}}
	}
	json.NewEncoder(w).Encode(tr)
}

// handleSweepChart draws the last full sweep with the areas of interest
// named in ?bands= (comma separated, default all) shaded behind it.
func (s *Server) handleSweepChart(w http.ResponseWriter, r *http.Request) {
	var names []string
	if q := r.URL.Query().Get("bands"); q != "" {
		names = strings.Split(q, ",")
	}
	bands, err := spectrum.SelectBands(spectrum.AreasOfInterest, names)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	minY := queryFloat(r, "min_y", spectrum.SweepMinY)
	maxY := queryFloat(r, "max_y", spectrum.SweepMaxY)
	if maxY <= minY {
		http.Error(w, "max_y must be above min_y", 400)
		return
	}

	tr, err := s.be.Sweep(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	f := spectrum.SweepFrame(tr.X, tr.Y, minY, maxY)
	if f.Bins() < 2 {
		http.Error(w, "No sweep data yet", http.StatusServiceUnavailable)
		return
	}

	opts := spectrum.ChartOptions{
		Width:  queryInt(r, "width", s.cfg.Chart.Width),
		Height: queryInt(r, "height", s.cfg.Chart.Height),
		Bands:  bands,
		YName:  "Power (dB)",
	}
	format, contentType := spectrum.PNG, "image/png"
	if strings.HasSuffix(r.URL.Path, ".svg") {
		format, contentType = spectrum.SVG, "image/svg+xml"
	}
	var buf bytes.Buffer
	if err := spectrum.RenderChart(&buf, f, format, opts); err != nil {
		s.logger.Warn("sweep chart render failed", zap.Error(err))
		http.Error(w, "Render error: "+err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) handleSigID(w http.ResponseWriter, r *http.Request) {
	db, err := s.be.SigID(r.Context())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	json.NewEncoder(w).Encode(db)
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return def
	}
	return v
}
