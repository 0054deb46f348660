// Command client connects to a running dashboard's websocket and prints a
// one-line summary of every message it receives.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/spectrum"
)

type message struct {
	Type string `json:"type"`

	// status
	Status  string `json:"status"`
	State   string `json:"state"`
	Frames  uint64 `json:"frames"`
	Clients int    `json:"clients"`

	// frame
	Frame *spectrum.Frame `json:"frame"`

	// analytics
	Peaks []map[string]string `json:"peaks"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard host:port")
	count := flag.Int("n", 50, "Messages to read before exiting, 0 for no limit")
	throttleMs := flag.Int("throttle", -1, "Send a display update with this throttle in ms")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("dial failed", zap.String("url", u.String()), zap.Error(err))
	}
	defer c.Close()

	if *throttleMs >= 0 {
		if err := c.WriteJSON(map[string]interface{}{
			"type":       "display",
			"throttleMs": *throttleMs,
		}); err != nil {
			logger.Warn("display update not sent", zap.Error(err))
		}
	}

	last := time.Now()
	for i := 0; *count == 0 || i < *count; i++ {
		_, b, err := c.ReadMessage()
		if err != nil {
			logger.Info("connection closed", zap.Error(err))
			return
		}
		var m message
		if err := json.Unmarshal(b, &m); err != nil {
			logger.Warn("undecodable message", zap.ByteString("data", b), zap.Error(err))
			continue
		}
		switch m.Type {
		case "frame":
			now := time.Now()
			f := m.Frame
			if f == nil || f.Bins() == 0 {
				fmt.Println("frame: empty")
				continue
			}
			fmt.Printf("frame %s: %d bins %.2f-%.2f MHz, %d peaks, +%v\n",
				f.Time, f.Bins(), f.X[0], f.X[len(f.X)-1], len(f.Annotations), now.Sub(last).Round(time.Millisecond))
			last = now
		case "status":
			fmt.Printf("status: %s (%s) frames=%d clients=%d\n", m.Status, m.State, m.Frames, m.Clients)
		case "analytics":
			fmt.Printf("analytics: %d peaks\n", len(m.Peaks))
			for _, p := range m.Peaks {
				fmt.Printf("  %s MHz %s dB %s\n", p["frequency"], p["power"], p["classification"])
			}
		default:
			fmt.Printf("%s: %s\n", m.Type, b)
		}
	}
}
