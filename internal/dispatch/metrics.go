package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Metric records one recognition operation for analysis
type Metric struct {
	Operation Op            `json:"operation"`
	Engine    string        `json:"engine"`
	Duration  time.Duration `json:"duration"`
	Pages     int           `json:"pages"`
	Success   bool          `json:"success"`
	Error     error         `json:"-"`
}

// Collector accumulates operation metrics in memory
type Collector struct {
	mutex   sync.RWMutex
	metrics []Metric
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		metrics: make([]Metric, 0),
	}
}

// Record records one operation metric
func (c *Collector) Record(metric Metric) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.metrics = append(c.metrics, metric)

	logger := log.With().
		Str("operation", string(metric.Operation)).
		Str("engine", metric.Engine).
		Dur("duration", metric.Duration).
		Int("pages", metric.Pages).
		Bool("success", metric.Success).
		Logger()

	if metric.Error != nil {
		logger = logger.With().Err(metric.Error).Logger()
	}

	logger.Debug().Msg("OCR operation metric recorded")
}

// Metrics returns a copy of all collected metrics
func (c *Collector) Metrics() []Metric {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]Metric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// Summary returns aggregate statistics grouped by operation and engine
func (c *Collector) Summary() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	byOperation := make(map[string]map[string]*OperationStats)

	for _, metric := range c.metrics {
		op := string(metric.Operation)
		if byOperation[op] == nil {
			byOperation[op] = make(map[string]*OperationStats)
		}
		if byOperation[op][metric.Engine] == nil {
			byOperation[op][metric.Engine] = &OperationStats{}
		}

		stats := byOperation[op][metric.Engine]
		stats.Count++
		stats.TotalPages += metric.Pages
		stats.TotalDuration += metric.Duration.Nanoseconds()

		if metric.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}

		if stats.Count == 1 {
			stats.MinDuration = metric.Duration.Nanoseconds()
			stats.MaxDuration = metric.Duration.Nanoseconds()
		} else {
			if metric.Duration.Nanoseconds() < stats.MinDuration {
				stats.MinDuration = metric.Duration.Nanoseconds()
			}
			if metric.Duration.Nanoseconds() > stats.MaxDuration {
				stats.MaxDuration = metric.Duration.Nanoseconds()
			}
		}
		stats.AvgDuration = stats.TotalDuration / int64(stats.Count)
	}

	return map[string]interface{}{
		"by_operation":     byOperation,
		"total_operations": len(c.metrics),
	}
}

// Clear discards all collected metrics
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.metrics = make([]Metric, 0)
}

// OperationStats holds statistics for one operation/engine pair
type OperationStats struct {
	Count         int   `json:"count"`
	SuccessCount  int   `json:"success_count"`
	FailureCount  int   `json:"failure_count"`
	TotalPages    int   `json:"total_pages"`
	TotalDuration int64 `json:"total_duration_ns"`
	MinDuration   int64 `json:"min_duration_ns"`
	MaxDuration   int64 `json:"max_duration_ns"`
	AvgDuration   int64 `json:"avg_duration_ns"`
}

// SuccessRate returns the success rate as a percentage
func (o *OperationStats) SuccessRate() float64 {
	if o.Count == 0 {
		return 0.0
	}
	return float64(o.SuccessCount) / float64(o.Count) * 100.0
}

// AvgDurationMs returns the average duration in milliseconds
func (o *OperationStats) AvgDurationMs() float64 {
	return float64(o.AvgDuration) / float64(time.Millisecond)
}
