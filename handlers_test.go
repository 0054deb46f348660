package main

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/backend"
	"github.com/sdrview/pkg/spectrum"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaultConfig(v)
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Record.Dir = t.TempDir()
	return cfg
}

// newTestServer returns a dashboard server talking to h as its backend.
func newTestServer(t *testing.T, h http.Handler) *Server {
	t.Helper()
	be := httptest.NewServer(h)
	t.Cleanup(be.Close)
	cfg := testConfig(t)
	cfg.Backend = be.URL
	c, err := backend.New(be.URL)
	if err != nil {
		t.Fatal(err)
	}
	return newServer(cfg, c, zap.NewNop())
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func testFrame(n int) spectrum.Frame {
	fft := make([]float64, n)
	for i := range fft {
		fft[i] = -50
	}
	fft[n/2] = -5
	d := spectrum.DefaultDisplaySettings()
	d.ShowPeaks = true
	return spectrum.BuildFrame(spectrum.Sample{FFT: fft, Time: "2024-05-01 10:00:00.000"}, d, []int{n / 2})
}

// newMultipart writes a single "file" part to buf and returns the request
// content type.
func newMultipart(t *testing.T, buf *bytes.Buffer, filename, content string) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType()
}

func TestDisplaySettings(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	rec := do(t, s, "POST", "/dashboard/display", `{"minY": -90, "throttleMs": 100, "showPeaks": false}`)
	if rec.Code != 200 {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	got := decode(t, do(t, s, "GET", "/dashboard/display", ""))
	if got["minY"] != float64(-90) || got["throttleMs"] != float64(100) || got["showPeaks"] != false {
		t.Errorf("display %v", got)
	}
	if d := s.store.Snapshot(); d.ThrottleInterval != 100*time.Millisecond {
		t.Errorf("store throttle %v", d.ThrottleInterval)
	}

	tests := []struct {
		name string
		body string
	}{
		{"min above max", `{"minY": 50}`},
		{"negative throttle", `{"throttleMs": -1}`},
		{"bad json", `{"minY": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, "POST", "/dashboard/display", tt.body); rec.Code != 400 {
				t.Errorf("got %d", rec.Code)
			}
		})
	}
}

func TestStatusCountsFrames(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())
	s.handleFrame(frameEvent{frame: testFrame(64), at: time.Now()})
	s.handleFrame(frameEvent{frame: testFrame(64), at: time.Now()})

	got := decode(t, do(t, s, "GET", "/dashboard/status", ""))
	if got["frames"] != float64(2) || got["status"] != "Ready" || got["state"] != "disconnected" {
		t.Errorf("status %v", got)
	}
}

func TestPeaksMissingFieldsShowNA(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())
	s.onAnalytics(backend.Analytics{Peaks: []backend.Peak{
		{Frequency: backend.Float(98.1e6)},
		{Frequency: backend.Float(101e6), Power: backend.Float(-3.25), Bandwidth: backend.Float(2e5),
			Classification: []backend.Label{{Label: "FM", Channel: 7}}},
	}})

	var got struct {
		Peaks []map[string]string `json:"peaks"`
	}
	rec := do(t, s, "GET", "/dashboard/peaks", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Peaks) != 2 {
		t.Fatalf("peaks %v", got.Peaks)
	}
	first := got.Peaks[0]
	if first["frequency"] != "98.100" || first["power"] != backend.NA || first["bandwidth"] != backend.NA || first["classification"] != backend.NA {
		t.Errorf("first %v", first)
	}
	second := got.Peaks[1]
	if second["power"] != "-3.250" || second["classification"] != "FM (ch 7)" {
		t.Errorf("second %v", second)
	}
}

func TestSpectrumChart(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())
	if rec := do(t, s, "GET", "/chart/spectrum.png", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before first frame: %d", rec.Code)
	}

	s.handleFrame(frameEvent{frame: testFrame(128), at: time.Now()})

	rec := do(t, s, "GET", "/chart/spectrum.png?width=320&height=200", "")
	if rec.Code != 200 || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("png: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
	rec = do(t, s, "GET", "/chart/spectrum.svg", "")
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "<svg") {
		t.Errorf("svg: %d", rec.Code)
	}
	rec = do(t, s, "GET", "/chart/waterfall.png", "")
	if rec.Code != 200 || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("waterfall: %d", rec.Code)
	}
}

func TestUpdateSettingsGoesThroughStore(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	rec := do(t, s, "POST", "/api/update_settings", `{"frequency": 433.92e6, "gain": 40}`)
	if rec.Code != 200 {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	got := decode(t, rec)
	if got["success"] != true {
		t.Errorf("reply %v", got)
	}
	if d := s.store.Snapshot(); d.CenterFreqHz != 433.92e6 {
		t.Errorf("display center %f", d.CenterFreqHz)
	}
	if dev := s.store.Device(); dev.Gain == nil || *dev.Gain != 40 {
		t.Errorf("device %+v", dev)
	}
	if rec := do(t, s, "POST", "/api/update_settings", `{}`); rec.Code != 400 {
		t.Errorf("empty patch: %d", rec.Code)
	}
}

func TestBackendErrorsKeepStatus(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error": "New file name already exists"}`)
	}))
	rec := do(t, s, "POST", "/file_manager/files/rename", `{"old_path": "a", "new_path": "b"}`)
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "New file name already exists") {
		t.Errorf("got %d %q", rec.Code, rec.Body)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	c, _ := backend.New(dead.URL)
	s2 := newServer(testConfig(t), c, zap.NewNop())
	if rec := do(t, s2, "GET", "/api/analytics", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("unreachable backend: %d", rec.Code)
	}
}

func TestStartSweep(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	if rec := do(t, s, "POST", "/api/start_sweep", `{"frequencyStart": 2e9, "frequencyStop": 1e9, "bandwidth": 20e6}`); rec.Code != 400 {
		t.Errorf("inverted range: %d", rec.Code)
	}
	rec := do(t, s, "POST", "/api/start_sweep", `{"frequencyStart": 88e6, "frequencyStop": 108e6, "bandwidth": 20e6}`)
	if rec.Code != 200 {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	d := s.store.Snapshot()
	if !d.Sweeping || d.SweepStart != 88e6 || d.SweepStop != 108e6 {
		t.Errorf("snapshot %+v", d)
	}
	if got := decode(t, do(t, s, "GET", "/dashboard/status", "")); got["status"] != statusSweepStarted {
		t.Errorf("status %v", got["status"])
	}
}

func TestTasksRelay(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	if rec := do(t, s, "POST", "/actions/tasks", `{"type": "tune"}`); rec.Code != 400 {
		t.Errorf("invalid task: %d", rec.Code)
	}
	rec := do(t, s, "POST", "/actions/tasks", `{"type": "tune", "frequency": 100e6}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body)
	}
	var tasks []backend.Task
	if err := json.Unmarshal(do(t, s, "GET", "/actions/tasks", "").Body.Bytes(), &tasks); err != nil || len(tasks) != 1 {
		t.Fatalf("tasks %v %v", tasks, err)
	}

	rec = do(t, s, "POST", "/actions/tasks/execute", "")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"taskIndex":0`) || !strings.Contains(body, "Finished executing tasks") {
		t.Errorf("stream %q", body)
	}
}

func TestFileManagerPassThrough(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	if rec := do(t, s, "POST", "/file_manager/files/create_directory", `{"path": "", "name": "archive"}`); rec.Code != 200 {
		t.Fatalf("mkdir: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, s, "POST", "/file_manager/files/create_directory", `{"path": "", "name": "archive"}`); rec.Code != 400 {
		t.Errorf("duplicate mkdir: %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/file_manager/files/move", `{"src": "captures", "dest": "archive", "name": "fm_2024_05_01_10_00_00.pkl"}`); rec.Code != 200 {
		t.Errorf("move: %d %s", rec.Code, rec.Body)
	}

	var l backend.Listing
	if err := json.Unmarshal(do(t, s, "GET", "/file_manager/files?path=archive", "").Body.Bytes(), &l); err != nil {
		t.Fatal(err)
	}
	if len(l.Files) != 1 || l.Files[0].ID != "archive/fm_2024_05_01_10_00_00.pkl" {
		t.Fatalf("listing %+v", l)
	}
	if rec := do(t, s, "GET", "/file_manager/files/metadata?path=archive/fm_2024_05_01_10_00_00.pkl", ""); rec.Code != 200 {
		t.Errorf("metadata: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, s, "POST", "/file_manager/files/delete", `{"path": "archive"}`); rec.Code != 200 {
		t.Errorf("delete: %d", rec.Code)
	}
	if rec := do(t, s, "POST", "/file_manager/files/delete", `{}`); rec.Code != 400 {
		t.Errorf("delete without path: %d", rec.Code)
	}
}

func TestClassifierUploadAndDownload(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "bands.json", `[{"label": "ADS-B", "frequency": 1090, "bandwidth": 2}]`)
	req := httptest.NewRequest("POST", "/api/upload_classifier", &buf)
	req.Header.Set("Content-Type", mw)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "Uploaded 1 classifier bands") {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, s, "GET", "/api/download_all_bands", "")
	if rec.Code != 200 || !strings.Contains(rec.Header().Get("Content-Disposition"), "all_bands.json") {
		t.Fatalf("download: %d %v", rec.Code, rec.Header())
	}
	if !strings.Contains(rec.Body.String(), "ADS-B") {
		t.Errorf("bands %s", rec.Body)
	}
}

func TestWebSocketReceivesFrames(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type  string          `json:"type"`
		Frame *spectrum.Frame `json:"frame"`
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "status" {
		t.Fatalf("first message %+v %v", msg, err)
	}

	s.handleFrame(frameEvent{frame: testFrame(32), at: time.Now()})
	msg.Type, msg.Frame = "", nil
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "frame" || msg.Frame == nil || msg.Frame.Bins() != 32 || len(msg.Frame.Annotations) != 1 {
		t.Errorf("frame message %+v", msg)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "display", "throttleMs": 250}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.store.Snapshot().ThrottleInterval != 250*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatal("display update over websocket not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweepPassThroughAndChart(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())

	rec := do(t, s, "GET", "/api/sweep", "")
	if rec.Code != 200 {
		t.Fatalf("sweep: %d %s", rec.Code, rec.Body)
	}
	var tr backend.SweepTrace
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.X) == 0 || len(tr.X) != len(tr.Y) {
		t.Errorf("trace %d/%d points", len(tr.X), len(tr.Y))
	}

	rec = do(t, s, "GET", "/chart/sweep.svg?bands=FM%20Radio,WiFi%202.4GHz", "")
	if rec.Code != 200 || rec.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("svg: %d %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "FM Radio") || strings.Contains(body, "LTE Band 12") {
		t.Error("chart does not show exactly the selected bands")
	}

	rec = do(t, s, "GET", "/chart/sweep.png", "")
	if rec.Code != 200 || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("png: %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/chart/sweep.png?bands=Airband", ""); rec.Code != 400 {
		t.Errorf("unknown band: %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/chart/sweep.png?min_y=10&max_y=0", ""); rec.Code != 400 {
		t.Errorf("inverted range: %d", rec.Code)
	}
}

func TestSweepChartWithoutData(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"x": [], "y": []}`)
	}))
	if rec := do(t, s, "GET", "/chart/sweep.png", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("empty sweep: %d", rec.Code)
	}
}

func TestSigIDPassThrough(t *testing.T) {
	s := newTestServer(t, newSimulator(nil).Handler())
	rec := do(t, s, "GET", "/sigid/data", "")
	if rec.Code != 200 {
		t.Fatalf("sigid: %d %s", rec.Code, rec.Body)
	}
	db, ok := decode(t, rec)["signals_database"].(map[string]interface{})
	if !ok || len(db) != len(simSignals) {
		t.Fatalf("database %v", db)
	}
	pocsag, _ := db["pocsag"].(map[string]interface{})
	if pocsag["Signal type"] != "POCSAG" || pocsag["Modulation"] != "FSK" {
		t.Errorf("pocsag %v", pocsag)
	}
}
