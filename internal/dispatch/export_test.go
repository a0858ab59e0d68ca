package dispatch

import "github.com/nats-io/nats.go"

// ProcessRecovered exposes the worker entry point.
func (d *Dispatcher) ProcessRecovered(msg *nats.Msg) []byte {
	return d.processRecovered(msg)
}
