package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/forcelab/forcemon/internal/monitoring"
	"github.com/forcelab/forcemon/internal/reading"
	"github.com/forcelab/forcemon/internal/units"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type publishedMessage struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

type recordingClient struct {
	Messages     []publishedMessage
	Disconnected bool
}

func (c *recordingClient) Connect() mqtt.Token { return fakeToken{} }

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.Messages = append(c.Messages, publishedMessage{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  payload.([]byte),
	})
	return fakeToken{}
}

func (c *recordingClient) Disconnect(quiesce uint) { c.Disconnected = true }

func TestPublisher_PublishReading(t *testing.T) {
	client := &recordingClient{}
	pub := NewWithClient(client, "forcemon", units.FamilyFC2231)

	received := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pub.PublishReading(reading.CalibratedReading{
		Sample: reading.RawSample{
			Seq:         17,
			Value:       2.5,
			Unit:        "V",
			Temperature: 23.5,
			ReceivedAt:  received,
		},
		Value:     50.0,
		Secondary: 5098.5,
		Smoothed:  49.8,
		Class:     reading.ClassStrong,
	})

	if len(client.Messages) != 1 {
		t.Fatalf("Expected 1 published message, got %d", len(client.Messages))
	}
	msg := client.Messages[0]
	if msg.Topic != "forcemon/fc2231/reading" {
		t.Errorf("Expected reading topic, got %s", msg.Topic)
	}
	if msg.QoS != 0 || msg.Retained {
		t.Errorf("Expected QoS 0 unretained, got qos=%d retained=%v", msg.QoS, msg.Retained)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("Payload is not valid JSON: %v", err)
	}
	if payload["seq"] != float64(17) {
		t.Errorf("Expected seq 17, got %v", payload["seq"])
	}
	if payload["value"] != 50.0 {
		t.Errorf("Expected value 50, got %v", payload["value"])
	}
	if payload["class"] != "STRONG" {
		t.Errorf("Expected class STRONG, got %v", payload["class"])
	}
	if payload["received_at"] != "2025-06-15T12:00:00Z" {
		t.Errorf("Unexpected received_at %v", payload["received_at"])
	}
}

func TestPublisher_CalibrationEvents(t *testing.T) {
	client := &recordingClient{}
	pub := NewWithClient(client, "forcemon", units.FamilyOpenScale)

	pub.PublishCalibrationProgress(3, 20)
	pub.PublishCalibrationComplete(10.5, "calibrated today | excellent stability")
	pub.PublishCalibrationFailed(errors.New("not enough samples"))

	if len(client.Messages) != 3 {
		t.Fatalf("Expected 3 published messages, got %d", len(client.Messages))
	}
	for i, msg := range client.Messages {
		if msg.Topic != "forcemon/openscale/calibration" {
			t.Errorf("Message %d: expected calibration topic, got %s", i, msg.Topic)
		}
	}

	var progress calibrationPayload
	if err := json.Unmarshal(client.Messages[0].Payload, &progress); err != nil {
		t.Fatalf("Progress payload invalid: %v", err)
	}
	if progress.Event != "progress" || progress.Collected != 3 || progress.Target != 20 {
		t.Errorf("Unexpected progress payload: %+v", progress)
	}

	var complete calibrationPayload
	if err := json.Unmarshal(client.Messages[1].Payload, &complete); err != nil {
		t.Fatalf("Complete payload invalid: %v", err)
	}
	if complete.Event != "complete" || complete.Tare != 10.5 {
		t.Errorf("Unexpected complete payload: %+v", complete)
	}

	var failed calibrationPayload
	if err := json.Unmarshal(client.Messages[2].Payload, &failed); err != nil {
		t.Fatalf("Failed payload invalid: %v", err)
	}
	if failed.Event != "failed" || failed.Error != "not enough samples" {
		t.Errorf("Unexpected failed payload: %+v", failed)
	}
}

func TestPublisher_Close(t *testing.T) {
	client := &recordingClient{}
	pub := NewWithClient(client, "forcemon", units.FamilyFC2231)

	pub.Close()
	if !client.Disconnected {
		t.Error("Expected Close to disconnect the client")
	}
}
