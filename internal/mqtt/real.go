package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/door-controller/internal/logger"
)

const (
	connectRetryInterval = 5 * time.Second
	publishTimeout       = 5 * time.Second
	disconnectQuiesceMs  = 1000
)

var errPublishTimeout = errors.New("publish timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	prefix string
	log    *zap.SugaredLogger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher starts connecting to the broker in the background and
// returns immediately; the controller must not wait on the network.
func NewRealPublisher(opts Options, log *zap.SugaredLogger) *RealPublisher {
	p := &RealPublisher{
		prefix: opts.TopicPrefix,
		log:    logger.OrNop(log),
		buffer: newRingBuffer(opts.BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetWill(Topic(p.prefix, TopicSystem), string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.log.Infow("mqtt connected", "broker", opts.Broker)
			go p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warnw("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(clientOpts)
	p.client.Connect()

	return p
}

// PublishScan sends a scan event (QoS 1).
func (p *RealPublisher) PublishScan(event ScanEvent) error {
	payload, err := FormatScanPayload(event)
	if err != nil {
		return fmt.Errorf("format scan payload: %w", err)
	}
	return p.publish(TopicScans, 1, false, payload)
}

// PublishReading sends a sensor reading (QoS 0).
func (p *RealPublisher) PublishReading(event ReadingEvent) error {
	payload, err := FormatReadingPayload(event)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(TopicReadings, 0, false, payload)
}

// PublishDoor sends a door state change, retained so subscribers see the
// current state on connect.
func (p *RealPublisher) PublishDoor(event DoorEvent) error {
	payload, err := FormatDoorPayload(event)
	if err != nil {
		return fmt.Errorf("format door payload: %w", err)
	}
	return p.publish(TopicDoor, 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(disconnectQuiesceMs)
	return nil
}

func (p *RealPublisher) publish(leaf string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: Topic(p.prefix, leaf), payload: payload, qos: qos, retained: retained}

	if !p.client.IsConnectionOpen() {
		p.enqueue(msg)
		return nil
	}

	if err := p.send(msg); err != nil {
		p.enqueue(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%s: %w", msg.topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buffer.push(msg) {
		p.log.Warnw("mqtt buffer full, dropping oldest", "capacity", p.buffer.capacity)
	}
}

// flush replays buffered messages in order. A failure puts the unsent tail
// back in the buffer for the next reconnect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	p.log.Infow("mqtt replaying buffered messages", "count", len(pending))

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warnw("mqtt replay failed", "error", err, "remaining", len(pending)-i)
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
}
