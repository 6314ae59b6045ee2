package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	tempFile     = "in_temp_input"
	humidityFile = "in_humidityrelative_input"
)

// IIOSensor reads a DHT11 bound to the kernel dht11 driver, which exposes
// readings in milli-units under an IIO device directory such as
// /sys/bus/iio/devices/iio:device0.
type IIOSensor struct {
	dir string
}

// NewIIOSensor returns a sensor reading from dir.
func NewIIOSensor(dir string) *IIOSensor {
	return &IIOSensor{dir: dir}
}

// Read reads both channels. The driver returns EIO when the one-wire
// transfer fails checksum; that channel is reported absent. Any other
// failure, such as a missing device, is an error.
func (s *IIOSensor) Read() (Sample, error) {
	var sample Sample

	temp, err := s.channel(tempFile)
	if err != nil {
		return Sample{}, err
	}
	sample.Temperature = temp

	humi, err := s.channel(humidityFile)
	if err != nil {
		return Sample{}, err
	}
	sample.Humidity = humi

	return sample, nil
}

func (s *IIOSensor) channel(name string) (*float64, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	switch {
	case err == nil:
	case isTransient(err):
		return nil, nil
	default:
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return nil, nil
	}
	v := milli / 1000
	return &v, nil
}

// isTransient reports read failures the dht11 driver produces for a bad
// transfer rather than a missing device.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EAGAIN)
}
