package sanitize

// Default limits applied to every upload.
const (
	DefaultMaxCellLength  = 200
	DefaultMaxRows        = 500
	DefaultMaxColumns     = 50
	DefaultMaxUploadBytes = 10 << 20
)

// Option applies a configuration option to the Sanitizer.
type Option func(*Sanitizer)

// WithMaxCellLength sets the rune limit applied before detection. A value
// <= 0 disables truncation.
func WithMaxCellLength(n int) Option {
	return func(s *Sanitizer) {
		s.maxCellLength = n
	}
}
