// Package signals turns external events into messages for the orchestrator.
//
// Relays (OS signals, resume detection, MQTT control topics) run on their own
// goroutines and only ever send on the shared channel. They never touch the display.
package signals

import (
	"context"
	"fmt"
)

// Message is an event delivered to the orchestrator
type Message interface {
	String() string
	message()
}

// Reload asks for the configuration to be re-read
type Reload struct{}

// TestMode shows fixed values until a TestMode with Temperature 0 arrives
type TestMode struct {
	Temperature int
	Gamma       float64
}

// Exit reports whether this message leaves test mode
func (t TestMode) Exit() bool { return t.Temperature == 0 }

// Shutdown asks the daemon to restore neutral values and stop
type Shutdown struct{}

// Sleep reports a system suspend (Resuming false) or resume (Resuming true)
type Sleep struct {
	Resuming bool
}

func (Reload) message()   {}
func (TestMode) message() {}
func (Shutdown) message() {}
func (Sleep) message()    {}

func (Reload) String() string   { return "reload" }
func (Shutdown) String() string { return "shutdown" }

func (t TestMode) String() string {
	if t.Exit() {
		return "test_mode(exit)"
	}
	return fmt.Sprintf("test_mode(%dK %.1f%%)", t.Temperature, t.Gamma)
}

func (s Sleep) String() string {
	if s.Resuming {
		return "resume"
	}
	return "sleep"
}

// Buffer is the capacity used for the shared message channel
const Buffer = 16

// send delivers m unless ctx ends first
func send(ctx context.Context, out chan<- Message, m Message) bool {
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}
