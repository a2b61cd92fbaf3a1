package core

import "time"

// Option tunes a service at construction time.
type Option func(*options)

type options struct {
	clock      func() time.Time
	bcryptCost int
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now, bcryptCost: 10}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
