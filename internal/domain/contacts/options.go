package contacts

import "time"

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithResolver replaces the DNS resolver.
func WithResolver(r Resolver) Option {
	return func(v *Validator) {
		if r != nil {
			v.resolver = r
		}
	}
}

// WithLookupTimeout bounds each domain check.
func WithLookupTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithDNSCheck toggles the domain existence lookup.
func WithDNSCheck(enabled bool) Option {
	return func(v *Validator) {
		v.dnsCheck = enabled
	}
}
