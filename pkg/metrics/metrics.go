// Package metrics keeps engine counters and gauges in an embedded
// time-series store under the application workdir.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"go.uber.org/zap"
)

const (
	MessageSent      = "wablast_message_sent"
	MessageFailed    = "wablast_message_failed"
	MessageDelivered = "wablast_message_delivered"
	MessageRead      = "wablast_message_read"
)

var (
	storage tstorage.Storage
	once    sync.Once
	mu      sync.Mutex
)

// InitMetrics opens the tstorage data directory under workdir.
func InitMetrics(workdir string) (err error) {
	once.Do(func() {
		storage, err = tstorage.NewStorage(
			tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
			tstorage.WithTimestampPrecision(tstorage.Seconds),
			tstorage.WithRetention(time.Hour*24*30),
		)
	})
	return err
}

// SetGauge records an instantaneous value for the named metric.
func SetGauge(name string, value int64) {
	insert(name, float64(value))
}

// CounterIncr records a +1 sample for the named metric; totals are
// recovered by summing the series over a window.
func CounterIncr(name string) {
	insert(name, 1)
}

func insert(name string, value float64) {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return
	}
	err := storage.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
		},
	})
	if err != nil {
		zap.S().Debugf("metrics insert %s failed: %s", name, err.Error())
	}
}

// SumOver sums all samples of the named metric in [start, end].
func SumOver(name string, start, end time.Time) float64 {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return 0
	}
	points, err := storage.Select(name, nil, start.Unix(), end.Unix())
	if err != nil {
		return 0
	}
	var total float64
	for _, p := range points {
		total += p.Value
	}
	return total
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
