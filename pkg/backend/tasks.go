package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/sdrview/pkg/stream"
)

// Task types understood by the backend scheduler.
const (
	TaskTune      = "tune"
	TaskRecord    = "record"
	TaskGain      = "gain"
	TaskBandwidth = "bandwidth"
	TaskSweep     = "sweep"

	SweepFull  = "full"
	SweepRange = "range"
)

// Task is one scheduled action. Which fields apply depends on Type.
type Task struct {
	Type      string   `json:"type"`
	Frequency *float64 `json:"frequency,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Label     string   `json:"label,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	SweepType string   `json:"sweepType,omitempty"`
	StartFreq *float64 `json:"startFreq,omitempty"`
	EndFreq   *float64 `json:"endFreq,omitempty"`
	DwellTime *float64 `json:"dwellTime,omitempty"`
}

// Validate checks that the fields Type needs are present.
func (t Task) Validate() error {
	switch t.Type {
	case TaskTune:
		if t.Frequency == nil {
			return errors.New("tune task needs a frequency")
		}
	case TaskRecord:
		if t.Duration == nil || *t.Duration <= 0 {
			return errors.New("record task needs a positive duration")
		}
		if t.Label == "" {
			return errors.New("record task needs a label")
		}
	case TaskGain, TaskBandwidth:
		if t.Value == nil {
			return fmt.Errorf("%s task needs a value", t.Type)
		}
	case TaskSweep:
		if t.DwellTime == nil {
			return errors.New("sweep task needs a dwell time")
		}
		switch t.SweepType {
		case SweepFull:
		case SweepRange:
			if t.StartFreq == nil || t.EndFreq == nil {
				return errors.New("range sweep needs start and end frequencies")
			}
			if *t.EndFreq <= *t.StartFreq {
				return errors.New("range sweep end must be above start")
			}
		default:
			return fmt.Errorf("unknown sweep type %q", t.SweepType)
		}
	default:
		return fmt.Errorf("unknown task type %q", t.Type)
	}
	return nil
}

// Describe returns a one-line summary of the task.
func (t Task) Describe() string {
	switch t.Type {
	case TaskTune:
		return "Tune to " + FormatFloat(t.Frequency, 1e6, 3) + " MHz"
	case TaskRecord:
		return fmt.Sprintf("Record %q for %s s", t.Label, FormatFloat(t.Duration, 1, 1))
	case TaskGain:
		return "Set gain to " + FormatFloat(t.Value, 1, 1)
	case TaskBandwidth:
		return "Set bandwidth to " + FormatFloat(t.Value, 1e6, 3) + " MHz"
	case TaskSweep:
		if t.SweepType == SweepFull {
			return "Full sweep, dwell " + FormatFloat(t.DwellTime, 1, 2) + " s"
		}
		return fmt.Sprintf("Sweep %s-%s MHz, dwell %s s",
			FormatFloat(t.StartFreq, 1e6, 3), FormatFloat(t.EndFreq, 1e6, 3), FormatFloat(t.DwellTime, 1, 2))
	default:
		return t.Type
	}
}

// TaskStatus is one progress event from task execution. TaskIndex is nil on
// the final summary event.
type TaskStatus struct {
	Status    string `json:"status"`
	TaskIndex *int   `json:"taskIndex,omitempty"`
}

// Tasks lists the queued tasks.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var out []Task
	err := c.doJSON(ctx, http.MethodGet, "/actions/tasks", nil, nil, &out)
	return out, err
}

// AddTask queues t and returns the stored copy.
func (c *Client) AddTask(ctx context.Context, t Task) (Task, error) {
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	var out Task
	err := c.doJSON(ctx, http.MethodPost, "/actions/tasks", nil, t, &out)
	return out, err
}

// ExecuteTasks starts the task queue and calls fn for every status event
// until the backend closes the stream or ctx is done.
func (c *Client) ExecuteTasks(ctx context.Context, fn func(TaskStatus)) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/actions/tasks/execute", nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.send(c.stream, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	r := stream.NewReader(resp.Body)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read task status: %w", err)
		}
		if ev.Data == nil {
			continue
		}
		var st TaskStatus
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			c.logger.Debug("malformed task status", zap.ByteString("data", ev.Data), zap.Error(err))
			continue
		}
		fn(st)
	}
}
