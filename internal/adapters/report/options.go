package report

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithDocument replaces the HTML builder.
func WithDocument(d *Document) Option {
	return func(g *Generator) {
		if d != nil {
			g.doc = d
		}
	}
}
