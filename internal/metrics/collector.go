package metrics

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// series is one metric under one label set
type series struct {
	labels map[string]string
	points []models.MetricPoint
}

// Collector keeps the per-step time series of one horizon
type Collector struct {
	mu sync.RWMutex

	started time.Time
	stopped time.Time

	// metric name -> canonical label key -> series
	metrics map[string]map[string]*series
}

func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		metrics: make(map[string]map[string]*series),
	}
}

// Start resets the wall-clock start of collection
func (c *Collector) Start() {
	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()
}

// Stop records the wall-clock end of collection
func (c *Collector) Stop() {
	c.mu.Lock()
	c.stopped = time.Now()
	c.mu.Unlock()
}

// Record appends a value for a step at the given simulated timestamp
func (c *Collector) Record(name string, step int, value float64, timestamp time.Time, labels map[string]string) {
	key := seriesKey(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	byKey, ok := c.metrics[name]
	if !ok {
		byKey = make(map[string]*series)
		c.metrics[name] = byKey
	}
	s, ok := byKey[key]
	if !ok {
		s = &series{labels: maps.Clone(labels)}
		byKey[key] = s
	}
	s.points = append(s.points, models.MetricPoint{
		Timestamp: timestamp,
		Step:      step,
		Name:      name,
		Value:     value,
		Labels:    s.labels,
	})
}

// OnStep records the standard series for a committed timestep
func (c *Collector) OnStep(ev engine.StepEvent) {
	RecordStep(c, ev)
}

// lookup must be called with c.mu held
func (c *Collector) lookup(name string, labels map[string]string) *series {
	return c.metrics[name][seriesKey(labels)]
}

// GetTimeSeries returns a copy of the points of a series, nil when it was never recorded
func (c *Collector) GetTimeSeries(name string, labels map[string]string) []models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.lookup(name, labels)
	if s == nil {
		return nil
	}
	out := slices.Clone(s.points)
	for i := range out {
		out[i].Labels = maps.Clone(s.labels)
	}
	return out
}

// Snapshot returns every series with the given labels, keyed by metric name
func (c *Collector) Snapshot(labels map[string]string) map[string][]models.MetricPoint {
	names := c.GetMetricNames()
	out := make(map[string][]models.MetricPoint, len(names))
	for _, name := range names {
		if points := c.GetTimeSeries(name, labels); points != nil {
			out[name] = points
		}
	}
	return out
}

// GetAggregation summarises a series, nil when it has no points
func (c *Collector) GetAggregation(name string, labels map[string]string) *Aggregation {
	c.mu.RLock()
	s := c.lookup(name, labels)
	var values []float64
	if s != nil {
		values = make([]float64, len(s.points))
		for i, p := range s.points {
			values[i] = p.Value
		}
	}
	c.mu.RUnlock()

	return summarize(values)
}

// GetMetricNames returns the recorded metric names in sorted order
func (c *Collector) GetMetricNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.metrics))
}

// GetLabelsForMetric returns a copy of each label set recorded under name
func (c *Collector) GetLabelsForMetric(name string) []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byKey := c.metrics[name]
	if byKey == nil {
		return nil
	}
	out := make([]map[string]string, 0, len(byKey))
	for _, key := range slices.Sorted(maps.Keys(byKey)) {
		out = append(out, maps.Clone(byKey[key].labels))
	}
	return out
}

// Duration is the wall-clock span between Start and Stop, zero while running
func (c *Collector) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped.IsZero() {
		return 0
	}
	return c.stopped.Sub(c.started)
}

// Clear drops every series and restarts the clock
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]map[string]*series)
	c.started = time.Now()
	c.stopped = time.Time{}
}

// seriesKey renders labels as "k1=v1,k2=v2," with keys sorted; no labels give ""
func seriesKey(labels map[string]string) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
