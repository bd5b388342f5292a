// Package reading defines the core data types flowing through weatherd.
package reading

import (
	"time"

	"github.com/xtxerr/weatherd/config"
	"github.com/xtxerr/weatherd/internal/errors"
	"github.com/xtxerr/weatherd/internal/validation"
)

// Reading represents a single temperature measurement from a sensor.
// This is the primary data unit flowing through the system.
type Reading struct {
	// ID is the storage-generated identifier, zero until the reading
	// has been durably written.
	ID int64 `json:"id,omitempty"`

	// SensorID identifies the producing sensor (e.g. "sensor_01").
	SensorID string `json:"sensor_id"`

	// Temperature in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Timestamp is when the measurement was taken. If the producer omits
	// it, the ingestion path assigns the current time exactly once, before
	// both the storage write and the cache mirror.
	Timestamp time.Time `json:"timestamp"`
}

// CacheKey returns the recency-cache key for this reading.
//
// The key is the sensor ID joined with the timestamp rendered in
// RFC 3339 form with nanoseconds, so equal instants always produce
// equal keys and keys for one sensor sort chronologically.
func (r Reading) CacheKey() string {
	return r.SensorID + "_" + r.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Validate checks the reading against the ingestion contract.
// Temperature must lie within [MinTemperature, MaxTemperature] and the
// sensor ID must be a non-empty well-formed identifier.
func (r Reading) Validate() error {
	if r.SensorID == "" {
		return errors.ErrMissingSensorID
	}
	if err := validation.ValidateDefaultSensorID(r.SensorID); err != nil {
		return errors.Wrap(errors.ErrInvalidReading, err.Error())
	}
	if err := validation.ValidateTemperature(r.Temperature,
		config.MinTemperature, config.MaxTemperature); err != nil {
		return errors.Wrap(errors.ErrTemperatureRange, err.Error())
	}
	return nil
}

// Source identifies which tier answered an analytics query.
type Source string

const (
	// SourceCache means the recency cache held enough in-window samples.
	SourceCache Source = "cache"

	// SourceStorage means the query fell back to the durable store.
	SourceStorage Source = "storage"
)

// AverageResult is the outcome of a windowed average query.
type AverageResult struct {
	Average     float64   `json:"average_temperature"`
	WindowStart time.Time `json:"period_start"`
	WindowEnd   time.Time `json:"period_end"`
	Count       int64     `json:"readings_count"`
	Source      Source    `json:"data_source"`
}
