package main

import (
	"io"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/segmentio/parquet-go"

	"github.com/sdrview/pkg/spectrum"
)

// FrameRow is one rendered frame as stored in a recording.
type FrameRow struct {
	Seq          int64     `parquet:"seq"`
	Time         string    `parquet:"time"`
	ReceivedAtNs int64     `parquet:"received_at_ns"`
	CenterFreqHz float64   `parquet:"center_freq_hz"`
	SpanHz       float64   `parquet:"span_hz"`
	FFT          []float64 `parquet:"fft"`
	PeaksMHz     []float64 `parquet:"peaks_mhz"`
}

// RecordingMetadata is stored as key/value metadata in the file footer.
type RecordingMetadata struct {
	ID        string                   `json:"id"`
	StartedAt string                   `json:"started_at"`
	Backend   string                   `json:"backend"`
	Settings  spectrum.DisplaySettings `json:"settings"`
}

// NewParquetWriter creates a generic parquet writer with the frame schema and
// the recording metadata.
func NewParquetWriter(w io.Writer, meta RecordingMetadata) *parquet.GenericWriter[FrameRow] {
	metaStr := "{}"
	if b, err := json.Marshal(meta); err == nil {
		metaStr = string(b)
	}

	return parquet.NewGenericWriter[FrameRow](w,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata("recording", metaStr),
	)
}

// recorderBatch is the number of rows buffered before a write.
const recorderBatch = 64

// FrameRecorder appends frames to a parquet file in batches.
type FrameRecorder struct {
	file   io.Closer
	writer *parquet.GenericWriter[FrameRow]
	buffer []FrameRow
	seq    int64
}

func NewFrameRecorder(f io.WriteCloser, meta RecordingMetadata) *FrameRecorder {
	return &FrameRecorder{
		file:   f,
		writer: NewParquetWriter(f, meta),
		buffer: make([]FrameRow, 0, recorderBatch),
	}
}

// Write buffers one frame. Rows are flushed to the writer once a batch is
// full.
func (p *FrameRecorder) Write(f spectrum.Frame, at time.Time) error {
	center, span := f.Settings.Span()
	row := FrameRow{
		Seq:          p.seq,
		Time:         f.Time,
		ReceivedAtNs: at.UnixNano(),
		CenterFreqHz: center,
		SpanHz:       span,
		FFT:          append([]float64(nil), f.Y...),
	}
	for _, a := range f.Annotations {
		row.PeaksMHz = append(row.PeaksMHz, a.X)
	}
	p.seq++
	p.buffer = append(p.buffer, row)
	if len(p.buffer) < recorderBatch {
		return nil
	}
	return p.flush()
}

// Rows returns the number of frames written so far.
func (p *FrameRecorder) Rows() int64 { return p.seq }

func (p *FrameRecorder) flush() error {
	if len(p.buffer) == 0 {
		return nil
	}
	_, err := p.writer.Write(p.buffer)
	p.buffer = p.buffer[:0]
	return err
}

func (p *FrameRecorder) Close() error {
	if err := p.flush(); err != nil {
		p.file.Close()
		return err
	}
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
