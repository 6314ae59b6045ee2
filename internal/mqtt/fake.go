package mqtt

import "sync"

// FakePublisher records published events for test assertions.
// It is safe for concurrent use; read recorded events through the accessors.
type FakePublisher struct {
	mu sync.Mutex

	scans    []ScanEvent
	readings []ReadingEvent
	doors    []DoorEvent
	system   []SystemEvent
	payloads map[string][][]byte

	// PublishError, if set, is returned by every scan, reading and door publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	closed    bool
	connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{payloads: make(map[string][][]byte)}
}

// PublishScan records the scan.
func (f *FakePublisher) PublishScan(event ScanEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatScanPayload(event)
	if err != nil {
		return err
	}
	f.scans = append(f.scans, event)
	f.payloads[TopicScans] = append(f.payloads[TopicScans], payload)
	return nil
}

// PublishReading records the reading.
func (f *FakePublisher) PublishReading(event ReadingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatReadingPayload(event)
	if err != nil {
		return err
	}
	f.readings = append(f.readings, event)
	f.payloads[TopicReadings] = append(f.payloads[TopicReadings], payload)
	return nil
}

// PublishDoor records the door event.
func (f *FakePublisher) PublishDoor(event DoorEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatDoorPayload(event)
	if err != nil {
		return err
	}
	f.doors = append(f.doors, event)
	f.payloads[TopicDoor] = append(f.payloads[TopicDoor], payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.system = append(f.system, event)
	f.payloads[TopicSystem] = append(f.payloads[TopicSystem], payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SetConnected controls the return value of IsConnected.
func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Scans returns a copy of the published scans.
func (f *FakePublisher) Scans() []ScanEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ScanEvent(nil), f.scans...)
}

// Readings returns a copy of the published readings.
func (f *FakePublisher) Readings() []ReadingEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ReadingEvent(nil), f.readings...)
}

// Doors returns a copy of the published door events.
func (f *FakePublisher) Doors() []DoorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DoorEvent(nil), f.doors...)
}

// SystemEvents returns a copy of the published system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.system...)
}

// Payloads returns the JSON payloads published under a topic leaf.
func (f *FakePublisher) Payloads(leaf string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads[leaf]...)
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = nil
	f.readings = nil
	f.doors = nil
	f.system = nil
	f.payloads = make(map[string][][]byte)
	f.closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.connected = false
}
