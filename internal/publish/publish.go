// Package publish pushes reading and calibration events to an MQTT broker
// so remote dashboards can follow a sensor without a serial connection.
// Publishing is best-effort: a slow or absent broker never stalls the
// pipeline.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/forcelab/forcemon/internal/monitoring"
	"github.com/forcelab/forcemon/internal/reading"
	"github.com/forcelab/forcemon/internal/units"
)

// connectTimeout bounds the initial broker handshake.
const connectTimeout = 5 * time.Second

// Client is the subset of the paho client used here, extracted so tests can
// substitute a recorder.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher serializes events as JSON onto family-scoped topics:
// <prefix>/<family>/reading and <prefix>/<family>/calibration.
type Publisher struct {
	client Client
	family units.Family
	prefix string
}

// readingPayload is the wire form of one calibrated reading.
type readingPayload struct {
	Seq         int64   `json:"seq"`
	Value       float64 `json:"value"`
	Secondary   float64 `json:"secondary"`
	Smoothed    float64 `json:"smoothed"`
	Class       string  `json:"class"`
	Temperature float64 `json:"temperature"`
	ReceivedAt  string  `json:"received_at"`
}

// calibrationPayload is the wire form of a calibration lifecycle event.
type calibrationPayload struct {
	Event     string  `json:"event"`
	Collected int     `json:"collected,omitempty"`
	Target    int     `json:"target,omitempty"`
	Status    string  `json:"status,omitempty"`
	Error     string  `json:"error,omitempty"`
	Tare      float64 `json:"tare_reference,omitempty"`
}

// New connects to the broker and returns a ready Publisher.
func New(brokerURL, prefix string, family units.Family) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(fmt.Sprintf("forcemon-%s", family)).
		SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, token.Error())
	}

	monitoring.Logf("publish: connected to mqtt broker %s", brokerURL)
	return NewWithClient(client, prefix, family), nil
}

// NewWithClient wraps an already-connected client.
func NewWithClient(client Client, prefix string, family units.Family) *Publisher {
	return &Publisher{client: client, family: family, prefix: prefix}
}

// PublishReading publishes one calibrated reading, fire and forget.
func (p *Publisher) PublishReading(r reading.CalibratedReading) {
	p.publish("reading", readingPayload{
		Seq:         r.Sample.Seq,
		Value:       r.Value,
		Secondary:   r.Secondary,
		Smoothed:    r.Smoothed,
		Class:       string(r.Class),
		Temperature: r.Sample.Temperature,
		ReceivedAt:  r.Sample.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
}

// PublishCalibrationProgress publishes live-calibration sample counts.
func (p *Publisher) PublishCalibrationProgress(collected, target int) {
	p.publish("calibration", calibrationPayload{
		Event:     "progress",
		Collected: collected,
		Target:    target,
	})
}

// PublishCalibrationComplete publishes a successful calibration.
func (p *Publisher) PublishCalibrationComplete(tare float64, status string) {
	p.publish("calibration", calibrationPayload{
		Event:  "complete",
		Status: status,
		Tare:   tare,
	})
}

// PublishCalibrationFailed publishes an aborted calibration.
func (p *Publisher) PublishCalibrationFailed(err error) {
	p.publish("calibration", calibrationPayload{
		Event: "failed",
		Error: err.Error(),
	})
}

// Close flushes in-flight messages and disconnects.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func (p *Publisher) publish(kind string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		monitoring.Logf("publish: marshaling %s payload: %v", kind, err)
		return
	}
	topic := fmt.Sprintf("%s/%s/%s", p.prefix, p.family, kind)
	// Fire and forget at QoS 0; the token is not waited on so a dead broker
	// cannot block the event loop.
	p.client.Publish(topic, 0, false, data)
}
