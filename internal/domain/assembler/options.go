package assembler

// Option applies a configuration option to the Assembler.
type Option func(*Assembler)

// WithDerived replaces the derived metric table.
func WithDerived(specs ...DerivedSpec) Option {
	return func(a *Assembler) {
		a.derived = specs
	}
}

// WithCharts replaces the chart table.
func WithCharts(charts ...ChartSpec) Option {
	return func(a *Assembler) {
		a.charts = charts
	}
}
