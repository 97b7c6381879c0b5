package main

import (
	"time"

	"github.com/kelindar/event"
)

// Message type constants for kelindar/event.
const (
	TypeEventChanged uint32 = iota + 1
	TypeDeviceFailure
	TypeConfigReloaded
	TypeKlippyState
)

// BusMessage is the interface kelindar/event requires of published
// messages.
type BusMessage interface {
	Type() uint32
}

// EventChangedMessage announces a printer mode transition.
type EventChangedMessage struct {
	Previous  string    `json:"previous"`
	Current   string    `json:"current"`
	Timestamp time.Time `json:"timestamp"`
}

func (m EventChangedMessage) Type() uint32 { return TypeEventChanged }

// DeviceFailureMessage announces a device I/O failure after retries.
type DeviceFailureMessage struct {
	Group     string    `json:"group"`
	Driver    string    `json:"driver"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func (m DeviceFailureMessage) Type() uint32 { return TypeDeviceFailure }

// ConfigReloadedMessage announces a completed configuration reload.
type ConfigReloadedMessage struct {
	Warnings  []string  `json:"warnings"`
	Timestamp time.Time `json:"timestamp"`
}

func (m ConfigReloadedMessage) Type() uint32 { return TypeConfigReloaded }

// KlippyStateMessage announces a Klipper connection state change
// (ready, shutdown, disconnected).
type KlippyStateMessage struct {
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

func (m KlippyStateMessage) Type() uint32 { return TypeKlippyState }

// Bus wraps the kelindar/event dispatcher for in-process broadcasting.
// The web layer subscribes to feed its websocket clients; the history
// journal subscribes to persist transitions and failures.
type Bus struct {
	dispatcher *event.Dispatcher
}

func NewBus() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers a message to all subscribers of its concrete type.
func (b *Bus) Publish(msg BusMessage) {
	switch m := msg.(type) {
	case EventChangedMessage:
		event.Publish(b.dispatcher, m)
	case DeviceFailureMessage:
		event.Publish(b.dispatcher, m)
	case ConfigReloadedMessage:
		event.Publish(b.dispatcher, m)
	case KlippyStateMessage:
		event.Publish(b.dispatcher, m)
	}
}

// Subscribe registers a typed handler; the handler's parameter type
// selects which messages it receives. Returns an unsubscribe function.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(EventChangedMessage):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceFailureMessage):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedMessage):
		return event.Subscribe(b.dispatcher, h)
	case func(KlippyStateMessage):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
