package backend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// SweepTrace is the last full sweep. X is in MHz and Y in dB.
type SweepTrace struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Sweep fetches the last full sweep trace.
func (c *Client) Sweep(ctx context.Context) (SweepTrace, error) {
	var tr SweepTrace
	if err := c.doJSON(ctx, http.MethodGet, "/api/sweep", nil, nil, &tr); err != nil {
		return SweepTrace{}, err
	}
	if len(tr.X) != len(tr.Y) {
		return SweepTrace{}, fmt.Errorf("sweep: %d frequencies for %d powers", len(tr.X), len(tr.Y))
	}
	return tr, nil
}

// Signal is one entry of the signal identification database. Image, when
// present, is a base64 encoded PNG.
type Signal struct {
	Key         string `json:"-"`
	Type        string `json:"Signal type"`
	Description string `json:"Description,omitempty"`
	Frequency   string `json:"Frequency,omitempty"`
	Mode        string `json:"Mode,omitempty"`
	Modulation  string `json:"Modulation,omitempty"`
	Bandwidth   string `json:"Bandwidth,omitempty"`
	Location    string `json:"Location,omitempty"`
	Audio       string `json:"Audio,omitempty"`
	Image       string `json:"Image,omitempty"`
}

// SignalDatabase is the /sigid/data reply: entries keyed by name.
type SignalDatabase struct {
	Signals map[string]Signal `json:"signals_database"`
}

// Sorted returns the entries ordered by key, with Key filled in.
func (db SignalDatabase) Sorted() []Signal {
	out := make([]Signal, 0, len(db.Signals))
	for k, s := range db.Signals {
		s.Key = k
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SigID fetches the signal identification database.
func (c *Client) SigID(ctx context.Context) (SignalDatabase, error) {
	var db SignalDatabase
	if err := c.doJSON(ctx, http.MethodGet, "/sigid/data", nil, nil, &db); err != nil {
		return SignalDatabase{}, err
	}
	if db.Signals == nil {
		db.Signals = map[string]Signal{}
	}
	return db, nil
}
