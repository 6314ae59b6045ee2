//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealBuzzer drives the buzzer pin through the GPIO character device.
type RealBuzzer struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealBuzzer requests pin on chipName as an output, initially low.
func NewRealBuzzer(chipName string, pin int) (*RealBuzzer, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pin, err)
	}

	return &RealBuzzer{chip: chip, line: line}, nil
}

// Set drives the buzzer line.
func (b *RealBuzzer) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := b.line.SetValue(v); err != nil {
		return fmt.Errorf("set buzzer pin: %w", err)
	}
	return nil
}

// Close drives the line low, then returns it to an input with pull-down
// (Pi boot default) before releasing it.
func (b *RealBuzzer) Close() error {
	var errs []error

	if b.line != nil {
		if err := b.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear buzzer pin: %w", err))
		}
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure buzzer pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close buzzer pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealServo generates a software PWM signal on a GPIO line.
// Pulse timing relies on the Go scheduler, so expect some jitter; hobby
// servos tolerate it for a two-position latch.
type RealServo struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu    sync.Mutex
	pulse time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewRealServo requests pin as an output and starts pulsing the closed
// position.
func NewRealServo(chipName string, pin int) (*RealServo, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request servo pin %d: %w", pin, err)
	}

	s := &RealServo{
		chip:  chip,
		line:  line,
		pulse: PulseWidth(PositionClosed),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *RealServo) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.mu.Lock()
		p := s.pulse
		s.mu.Unlock()

		_ = s.line.SetValue(1)
		time.Sleep(p)
		_ = s.line.SetValue(0)
		time.Sleep(ServoFrame - p)
	}
}

// SetPosition moves the servo to position in [-1, 1].
func (s *RealServo) SetPosition(position float64) {
	s.mu.Lock()
	s.pulse = PulseWidth(position)
	s.mu.Unlock()
}

// Open moves the latch to the open position.
func (s *RealServo) Open() error {
	s.SetPosition(PositionOpen)
	return nil
}

// Close moves the latch to the closed position.
func (s *RealServo) Close() error {
	s.SetPosition(PositionClosed)
	return nil
}

// Release stops the pulse train and frees the line.
func (s *RealServo) Release() error {
	close(s.stop)
	<-s.done

	var errs []error
	if err := s.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear servo pin: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close servo pin: %w", err))
	}
	if err := s.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}
