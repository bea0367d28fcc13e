package mqttdriver

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeBroker is an in-process mqtt.Client routing messages by exact topic.
// Methods not overridden panic.
type fakeBroker struct {
	mqtt.Client

	mu       sync.Mutex
	routes   map[string]mqtt.MessageHandler
	retained map[string][]byte
	// failSubscribe makes every subscription fail.
	failSubscribe bool
	subscribed    []string
	unsubscribed  []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		routes:   make(map[string]mqtt.MessageHandler),
		retained: make(map[string][]byte),
	}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubscribe {
		return doneToken{err: errors.New("not authorised")}
	}
	b.subscribed = append(b.subscribed, topic)
	b.routes[topic] = callback
	if p, ok := b.retained[topic]; ok {
		go callback(b, fakeMessage{topic: topic, payload: p})
	}
	return doneToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		b.unsubscribed = append(b.unsubscribed, topic)
		delete(b.routes, topic)
	}
	return doneToken{}
}

func (b *fakeBroker) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	b.mu.Lock()
	p := payload.([]byte)
	if retained {
		b.retained[topic] = p
	}
	callback := b.routes[topic]
	b.mu.Unlock()
	if callback != nil {
		callback(b, fakeMessage{topic: topic, payload: p})
	}
	return doneToken{}
}

func (b *fakeBroker) calls() (subscribed, unsubscribed []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.subscribed...), append([]string(nil), b.unsubscribed...)
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }
