package main

import (
	"testing"
	"time"
)

func TestBusDeliversTypedMessages(t *testing.T) {
	bus := NewBus()

	got := make(chan EventChangedMessage, 1)
	unsubscribe := bus.Subscribe(func(m EventChangedMessage) {
		got <- m
	})
	defer unsubscribe()

	bus.Publish(EventChangedMessage{Previous: "idle", Current: "printing", Timestamp: time.Now()})

	select {
	case m := <-got:
		if m.Previous != "idle" || m.Current != "printing" {
			t.Errorf("delivered %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestBusTypeIsolation(t *testing.T) {
	bus := NewBus()

	wrongType := make(chan struct{}, 1)
	defer bus.Subscribe(func(DeviceFailureMessage) {
		wrongType <- struct{}{}
	})()

	rightType := make(chan struct{}, 1)
	defer bus.Subscribe(func(KlippyStateMessage) {
		rightType <- struct{}{}
	})()

	bus.Publish(KlippyStateMessage{State: "ready", Timestamp: time.Now()})

	select {
	case <-rightType:
	case <-time.After(time.Second):
		t.Fatal("klippy subscriber never fired")
	}
	select {
	case <-wrongType:
		t.Error("device-failure subscriber received a klippy message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	got := make(chan struct{}, 1)
	unsubscribe := bus.Subscribe(func(ConfigReloadedMessage) {
		got <- struct{}{}
	})
	unsubscribe()

	bus.Publish(ConfigReloadedMessage{Timestamp: time.Now()})

	select {
	case <-got:
		t.Error("unsubscribed handler still fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnknownHandlerIsNoop(t *testing.T) {
	bus := NewBus()
	// A handler of an unsupported type gets a no-op unsubscriber rather
	// than a panic.
	unsubscribe := bus.Subscribe(func(int) {})
	unsubscribe()
}
