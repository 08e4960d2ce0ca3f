package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/wifi-sensor/internal/notifier"
	"github.com/sweeney/wifi-sensor/internal/ring"
)

const (
	connectWait    = 10 * time.Second
	publishTimeout = 5 * time.Second
	retryInterval  = 5 * time.Second
)

// ErrClosed is returned by publishes after Close.
var ErrClosed = errors.New("publisher closed")

// Config configures a RealPublisher.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int // outbound messages kept while offline
}

// Stats is a point-in-time view of the publisher.
type Stats struct {
	Connected bool
	Queued    int
	Dropped   int
	Published int
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// RealPublisher publishes to an actual MQTT broker and feeds inbound
// messages to Inbound(). Outbound messages are queued while the broker is
// unreachable and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    zerolog.Logger

	// sendMu orders the connected check, buffering and replay so buffered
	// messages always reach the broker before newer ones.
	sendMu sync.Mutex

	mu        sync.Mutex
	queue     *ring.Buffer[message]
	dropped   int
	published int

	inbound   chan Inbound
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// NewRealPublisher creates a publisher for the given broker. It does not fail
// when the broker is unreachable: paho keeps retrying in the background and
// messages are buffered until the first connection succeeds.
func NewRealPublisher(cfg Config, log zerolog.Logger) *RealPublisher {
	p := newPublisher(cfg, log)

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "OFFLINE", Reason: "LWT"})

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetOrderMatters(true).
		SetWill(p.topics.System(), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		p.log.Warn().Str("broker", cfg.Broker).Msg("broker not reachable yet, buffering until connected")
	} else if err := token.Error(); err != nil {
		p.log.Error().Err(err).Str("broker", cfg.Broker).Msg("connect to broker")
	}
	return p
}

// newPublisher builds a publisher without a client.
func newPublisher(cfg Config, log zerolog.Logger) *RealPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	return &RealPublisher{
		topics:  NewTopics(cfg.TopicPrefix),
		log:     log,
		queue:   ring.New[message](cfg.BufferSize),
		inbound: make(chan Inbound, 64),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

func (p *RealPublisher) onConnect(c paho.Client) {
	filters := make(map[string]byte)
	for _, t := range p.topics.Subscriptions() {
		filters[t] = 1
	}
	token := c.SubscribeMultiple(filters, p.onMessage)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Error().Msg("subscribe timeout")
	} else if err := token.Error(); err != nil {
		p.log.Error().Err(err).Msg("subscribe")
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if err := p.replay(); err != nil {
		p.log.Warn().Err(err).Msg("replay failed, re-buffered")
		return
	}

	reconnected, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
	if err := p.send(message{topic: p.topics.System(), qos: 1, retained: true, payload: reconnected}); err != nil {
		p.log.Warn().Err(err).Msg("publish reconnected")
	}
}

// replay sends the buffered messages oldest first. On failure the unsent
// tail goes back in the queue, still in order. Callers hold sendMu.
func (p *RealPublisher) replay() error {
	p.mu.Lock()
	pending := p.queue.DrainAll()
	p.mu.Unlock()
	if len(pending) > 0 {
		p.log.Info().Int("count", len(pending)).Msg("replaying buffered messages")
	}
	for i, m := range pending {
		if err := p.send(m); err != nil {
			p.requeue(pending[i:])
			return err
		}
	}
	return nil
}

func (p *RealPublisher) onMessage(_ paho.Client, msg paho.Message) {
	in, err := p.topics.Decode(msg.Topic(), msg.Payload())
	if err != nil {
		p.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping inbound message")
		return
	}
	select {
	case p.inbound <- in:
	case <-p.done:
	}
}

// Inbound delivers decoded messages from every subscribed topic.
func (p *RealPublisher) Inbound() <-chan Inbound {
	return p.inbound
}

func (p *RealPublisher) send(m message) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

func (p *RealPublisher) requeue(ms []message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range ms {
		if p.queue.Push(m) {
			p.dropped++
		}
	}
}

// publish sends m now if connected, otherwise buffers it. Anything still
// buffered is sent first. A failed send is buffered too, so the caller only
// sees an error after Close.
func (p *RealPublisher) publish(m message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if !p.client.IsConnectionOpen() {
		p.requeue([]message{m})
		p.log.Debug().Str("topic", m.topic).Msg("offline, buffered")
		return nil
	}
	if err := p.replay(); err != nil {
		p.requeue([]message{m})
		p.log.Warn().Err(err).Msg("replay failed, buffered")
		return nil
	}
	if err := p.send(m); err != nil {
		p.requeue([]message{m})
		p.log.Warn().Err(err).Msg("publish failed, buffered")
	}
	return nil
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(message{topic: p.topics.System(), qos: 1, retained: event.Retained, payload: payload})
}

// PublishUtilization sends a utilization report. QoS 0: the next report
// supersedes a lost one.
func (p *RealPublisher) PublishUtilization(report UtilizationReport) error {
	payload, err := FormatUtilizationPayload(report)
	if err != nil {
		return fmt.Errorf("format utilization payload: %w", err)
	}
	return p.publish(message{topic: p.topics.Utilization(), qos: 0, payload: payload})
}

// Post publishes the notification as the retained state of the notification topic.
func (p *RealPublisher) Post(id int, n notifier.Notification) error {
	payload, err := FormatNotificationPayload(id, n)
	if err != nil {
		return fmt.Errorf("format notification payload: %w", err)
	}
	return p.publish(message{topic: p.topics.Notification(), qos: 1, retained: true, payload: payload})
}

// Cancel clears the retained notification.
func (p *RealPublisher) Cancel(int) error {
	return p.publish(message{topic: p.topics.Notification(), qos: 1, retained: true, payload: []byte{}})
}

// Connect asks the radio agent to join req.Network. The reply arrives on
// the connect reply topic.
func (p *RealPublisher) Connect(req notifier.ConnectRequest) error {
	payload, err := FormatConnectPayload(req)
	if err != nil {
		return fmt.Errorf("format connect payload: %w", err)
	}
	return p.publish(message{topic: p.topics.Connect(), qos: 1, payload: payload})
}

// OpenNetworkPicker asks the UI to show the network list.
func (p *RealPublisher) OpenNetworkPicker() error {
	payload, err := FormatPickerPayload(p.now())
	if err != nil {
		return fmt.Errorf("format picker payload: %w", err)
	}
	return p.publish(message{topic: p.topics.Picker(), qos: 1, payload: payload})
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Stats returns connection and buffer counters.
func (p *RealPublisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Connected: p.client.IsConnectionOpen(),
		Queued:    p.queue.Len(),
		Dropped:   p.dropped,
		Published: p.published,
	}
}

// Close disconnects from the broker. Buffered messages are discarded.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.client.Disconnect(1000) // 1 second timeout
		p.mu.Lock()
		if n := p.queue.Len(); n > 0 {
			p.log.Warn().Int("count", n).Msg("discarding buffered messages")
		}
		p.mu.Unlock()
	})
	return nil
}
