package service

import "time"

type AsyncRunner func(task func())

// Clock returns the current instant. Services compare instants in UTC.
type Clock func() time.Time

type options struct {
	now         Clock
	asyncRunner AsyncRunner
}

type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		now: time.Now,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) utcNow() time.Time {
	return o.now().UTC()
}

func WithAsyncRunner(runner AsyncRunner) Option {
	return func(o *options) {
		if runner != nil {
			o.asyncRunner = runner
		}
	}
}

func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
