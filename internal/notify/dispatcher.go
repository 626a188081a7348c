// Package notify delivers the per-person notifications raised by form actions.
package notify

import (
	"context"
	"sync"
	"time"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"

	// EventNotification is the SSE event name of a notification.
	EventNotification = "notification"
	// EventHeartbeat keeps idle streams open.
	EventHeartbeat = "heartbeat"
)

// Notification is one message for a person. Key and Args are rendered by the
// translator in the receiving person's language.
type Notification struct {
	PersonID  string    `json:"-"`
	Key       string    `json:"key"`
	Args      []any     `json:"args,omitempty"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher fans notifications out to the open streams of a person and keeps
// the latest one as a flash for the next rendered page.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	flashes     map[string]Notification
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type subscriber struct {
	id     int64
	stream chan Notification
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		flashes:     make(map[string]Notification),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// Subscribe opens a stream for the person. The stream is released when ctx
// ends or the returned cleanup is called.
func (d *Dispatcher) Subscribe(ctx context.Context, personID string) (<-chan Notification, func()) {
	if personID == "" {
		ch := make(chan Notification)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Notification, d.bufferSize),
	}
	d.register(personID, sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() { d.unregister(personID, sub.id) })
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers the notification without blocking; full streams drop it.
func (d *Dispatcher) Publish(notification Notification) {
	if notification.PersonID == "" || notification.Key == "" {
		return
	}
	if notification.Level == "" {
		notification.Level = LevelInfo
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = d.clock().UTC()
	}

	d.mu.Lock()
	d.flashes[notification.PersonID] = notification
	subscribers := d.subscribers[notification.PersonID]
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.Unlock()

	for _, sub := range copies {
		select {
		case sub.stream <- notification:
		default:
		}
	}
}

// Success publishes a success notification.
func (d *Dispatcher) Success(personID, key string, args ...any) {
	d.Publish(Notification{PersonID: personID, Key: key, Args: args, Level: LevelSuccess})
}

// Failure publishes an error notification.
func (d *Dispatcher) Failure(personID, key string, args ...any) {
	d.Publish(Notification{PersonID: personID, Key: key, Args: args, Level: LevelError})
}

// TakeFlash returns and forgets the latest notification of the person.
func (d *Dispatcher) TakeFlash(personID string) (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	notification, ok := d.flashes[personID]
	if ok {
		delete(d.flashes, personID)
	}
	return notification, ok
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(personID string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[personID]; !ok {
		d.subscribers[personID] = make(map[int64]*subscriber)
	}
	d.subscribers[personID][sub.id] = sub
}

func (d *Dispatcher) unregister(personID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[personID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, personID)
		}
	}
	d.mu.Unlock()
}
