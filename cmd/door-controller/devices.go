package main

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/access"
	"github.com/sweeney/door-controller/internal/config"
	"github.com/sweeney/door-controller/internal/gpio"
	"github.com/sweeney/door-controller/internal/lcd"
	"github.com/sweeney/door-controller/internal/nfc"
	"github.com/sweeney/door-controller/internal/sensor"
)

// devices are the peripherals of one controller.
type devices struct {
	reader  nfc.Reader
	buzzer  gpio.Buzzer
	latch   gpio.Latch
	display lcd.Display
	sensor  sensor.Sensor
}

// openDevices opens every real driver. The returned func releases whatever
// was opened, also on error.
func openDevices(hw config.Hardware, log *zap.SugaredLogger) (devices, func(), error) {
	var (
		devs    devices
		closers []func() error
	)
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warnw("release device", "error", err)
			}
		}
	}

	buzzer, err := gpio.NewRealBuzzer(hw.GPIOChip, hw.BuzzerPin)
	if err != nil {
		return devs, release, fmt.Errorf("init buzzer: %w", err)
	}
	closers = append(closers, buzzer.Close)
	devs.buzzer = buzzer

	servo, err := gpio.NewRealServo(hw.GPIOChip, hw.ServoPin)
	if err != nil {
		return devs, release, fmt.Errorf("init servo: %w", err)
	}
	closers = append(closers, servo.Release)
	devs.latch = servo

	display, err := lcd.NewRealDisplay(hw.I2CBus, hw.LCDAddress)
	if err != nil {
		return devs, release, fmt.Errorf("init display: %w", err)
	}
	closers = append(closers, display.Close)
	devs.display = display

	reader, err := nfc.NewRealReader(hw.NFCDevice)
	if err != nil {
		return devs, release, fmt.Errorf("init card reader: %w", err)
	}
	closers = append(closers, reader.Close)
	devs.reader = reader

	devs.sensor = sensor.NewIIOSensor(hw.SensorPath)

	log.Infow("devices ready",
		"gpio_chip", hw.GPIOChip,
		"buzzer_pin", hw.BuzzerPin,
		"servo_pin", hw.ServoPin,
		"nfc", hw.NFCDevice,
		"lcd", fmt.Sprintf("%s@%#x", hw.I2CBus, hw.LCDAddress),
		"sensor", hw.SensorPath,
	)
	return devs, release, nil
}

// writeState prints one sensor sample, the reader and the allow-list size.
// Only the sensor and the reader are opened.
func writeState(w io.Writer, cfg *config.Config) error {
	s := sensor.NewIIOSensor(cfg.Hardware.SensorPath)
	sample, sensorErr := s.Read()
	if sensorErr != nil {
		fmt.Fprintf(w, "Sensor: error: %v\n", sensorErr)
	} else {
		fmt.Fprintf(w, "Sensor: %s\n", sample)
	}

	reader, readerErr := nfc.NewRealReader(cfg.Hardware.NFCDevice)
	if readerErr != nil {
		fmt.Fprintf(w, "Reader: error: %v\n", readerErr)
	} else {
		fmt.Fprintf(w, "Reader: %v\n", reader)
		_ = reader.Close()
	}

	allow, err := access.LoadAllowList(cfg.AllowListFile)
	if err != nil {
		fmt.Fprintf(w, "Allow-list: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(w, "Allow-list: %d cards\n", allow.Len())
	}

	return errors.Join(sensorErr, readerErr)
}
