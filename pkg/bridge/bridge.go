// Package bridge forwards engine events to whatever host embeds the
// library. Without a registered sink events are dropped.
package bridge

import "sync/atomic"

type NotifyFunc func(topic string, payload string)

var sink atomic.Pointer[NotifyFunc]

// SetNotifyImpl installs f as the event sink. nil removes it.
func SetNotifyImpl(f NotifyFunc) {
	if f == nil {
		sink.Store(nil)
		return
	}
	sink.Store(&f)
}

func Notify(topic string, payload string) {
	if f := sink.Load(); f != nil {
		(*f)(topic, payload)
	}
}
