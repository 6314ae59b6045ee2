// Package sensor reads temperature and relative humidity from a DHT11.
package sensor

import "fmt"

// Sample is one sensor reading. A nil field means the sensor did not
// report that quantity this time.
type Sample struct {
	Temperature *float64 // degrees Celsius
	Humidity    *float64 // percent relative humidity
}

// Complete reports whether both quantities are present.
func (s Sample) Complete() bool {
	return s.Temperature != nil && s.Humidity != nil
}

// String renders the sample for logs.
func (s Sample) String() string {
	return fmt.Sprintf("temp=%s humi=%s", format(s.Temperature), format(s.Humidity))
}

func format(v *float64) string {
	if v == nil {
		return "absent"
	}
	return fmt.Sprintf("%.1f", *v)
}

// Sensor takes a single reading.
type Sensor interface {
	// Read returns the current sample. Absent quantities are nil and are not
	// errors; an error means the device could not be read at all.
	Read() (Sample, error)
}

// Value is a helper for building samples.
func Value(v float64) *float64 {
	return &v
}
