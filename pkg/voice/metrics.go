package voice

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Metrics is the latency breakdown of one turn.
type Metrics struct {
	Transcription time.Duration `json:"transcription"`
	Completion    time.Duration `json:"completion"`
	Synthesis     time.Duration `json:"synthesis"`
	Total         time.Duration `json:"total"`

	AudioBytesIn  int `json:"audio_bytes_in"`
	AudioBytesOut int `json:"audio_bytes_out"`
}

// FormatLatency returns a formatted string of the stage latencies.
func (m Metrics) FormatLatency() string {
	return formatDuration(m.Transcription) + " STT | " +
		formatDuration(m.Completion) + " LLM | " +
		formatDuration(m.Synthesis) + " TTS | " +
		formatDuration(m.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// Counters are cumulative run totals.
type Counters struct {
	Started   int64
	Completed int64
	Failed    map[Stage]int64
}

// MetricsCollector aggregates turn metrics. It is goroutine-safe.
type MetricsCollector struct {
	mu       sync.Mutex
	last     Metrics
	history  []Metrics // Recent turns for averaging
	started  int64
	finished int64
	failed   map[Stage]int64

	onUpdate func(Metrics)
}

const metricsWindow = 100

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, metricsWindow),
		failed:  make(map[Stage]int64),
	}
}

// OnUpdate sets a callback that fires after every completed turn.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// RunStarted counts a run that passed validation.
func (m *MetricsCollector) RunStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

// RunCompleted archives a successful turn.
func (m *MetricsCollector) RunCompleted(turn Metrics) {
	m.mu.Lock()
	m.finished++
	m.last = turn
	m.history = append(m.history, turn)
	if len(m.history) > metricsWindow {
		m.history = m.history[1:]
	}
	fn := m.onUpdate
	m.mu.Unlock()

	if fn != nil {
		fn(turn)
	}
}

// RunFailed counts a failure at stage.
func (m *MetricsCollector) RunFailed(stage Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[stage]++
}

// Last returns the most recent completed turn.
func (m *MetricsCollector) Last() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Counters returns a copy of the run totals.
func (m *MetricsCollector) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()

	failed := make(map[Stage]int64, len(m.failed))
	for k, v := range m.failed {
		failed[k] = v
	}
	return Counters{Started: m.started, Completed: m.finished, Failed: failed}
}

// Average returns average metrics over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.Transcription += h.Transcription
		avg.Completion += h.Completion
		avg.Synthesis += h.Synthesis
		avg.Total += h.Total
		avg.AudioBytesIn += h.AudioBytesIn
		avg.AudioBytesOut += h.AudioBytesOut
	}

	n := len(m.history)
	avg.Transcription /= time.Duration(n)
	avg.Completion /= time.Duration(n)
	avg.Synthesis /= time.Duration(n)
	avg.Total /= time.Duration(n)
	avg.AudioBytesIn /= n
	avg.AudioBytesOut /= n

	return avg
}

// failureStages fixes the output order of the failure counter.
var failureStages = []Stage{
	StageRequest, StageValidation, StageSession,
	StageTranscription, StageCompletion, StageSynthesis,
}

// WritePrometheus writes the collector in Prometheus text exposition format.
func (m *MetricsCollector) WritePrometheus(w io.Writer) error {
	c := m.Counters()
	avg := m.Average()

	_, err := fmt.Fprintf(w, `# HELP talkback_runs_started Turns that passed validation
# TYPE talkback_runs_started counter
talkback_runs_started %d

# HELP talkback_runs_completed Turns that returned audio or text
# TYPE talkback_runs_completed counter
talkback_runs_completed %d

`, c.Started, c.Completed)
	if err != nil {
		return err
	}

	fmt.Fprint(w, "# HELP talkback_runs_failed Failed turns by stage\n# TYPE talkback_runs_failed counter\n")
	for _, stage := range failureStages {
		fmt.Fprintf(w, "talkback_runs_failed{stage=%q} %d\n", stage, c.Failed[stage])
	}

	_, err = fmt.Fprintf(w, `
# HELP talkback_stage_latency_seconds Average stage latency over recent turns
# TYPE talkback_stage_latency_seconds gauge
talkback_stage_latency_seconds{stage="transcription"} %.3f
talkback_stage_latency_seconds{stage="completion"} %.3f
talkback_stage_latency_seconds{stage="synthesis"} %.3f
talkback_stage_latency_seconds{stage="total"} %.3f
`, avg.Transcription.Seconds(), avg.Completion.Seconds(), avg.Synthesis.Seconds(), avg.Total.Seconds())
	return err
}
