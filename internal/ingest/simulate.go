package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/xtxerr/weatherd/internal/reading"
)

// Simulate generates synthetic readings spread over the last hour for
// the given number of sensors and stores them synchronously. Intended
// for demos and load testing; returns the number of readings written.
func (s *Service) Simulate(ctx context.Context, sensorCount, readingsPerSensor int) (int, error) {
	if sensorCount < 1 || readingsPerSensor < 1 {
		return 0, nil
	}

	// Spacing keeps every timestamp inside (now-1h, now) regardless of
	// batch size, so simulated data lands in the hourly-average window.
	base := s.now().UTC()
	step := time.Hour / time.Duration(readingsPerSensor+1)
	written := 0

	for sensor := 1; sensor <= sensorCount; sensor++ {
		sensorID := fmt.Sprintf("sensor_%02d", sensor)

		for i := 0; i < readingsPerSensor; i++ {
			select {
			case <-ctx.Done():
				return written, ctx.Err()
			default:
			}

			// Base temperature around 20C with small variations.
			temp := 20 + rand.Float64()*10 - 5 + rand.Float64()*4 - 2

			err := s.Store(ctx, reading.Reading{
				SensorID:    sensorID,
				Temperature: float64(int(temp*10)) / 10,
				Timestamp:   base.Add(-time.Duration(i+1) * step),
			})
			if err != nil {
				return written, err
			}
			written++
		}
	}

	s.log.Info("simulation complete", "sensors", sensorCount, "written", written)
	return written, nil
}
