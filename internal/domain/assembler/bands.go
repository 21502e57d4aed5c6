package assembler

// Direction tells whether a smaller or a larger result is better.
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

// Rating is the performance category a value falls into.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingAverage   Rating = "Average"
	RatingPoor      Rating = "Poor"
)

// Bands are the coloured regions drawn behind a chart. Edges run from the
// axis minimum through three cut points to the axis maximum, ascending.
type Bands struct {
	Direction Direction
	Edges     [5]float64
}

// Rate places v into a category. Values beyond the axis take the nearest
// category.
func (b Bands) Rate(v float64) Rating {
	e := b.Edges
	if b.Direction == LowerIsBetter {
		switch {
		case v < e[1]:
			return RatingExcellent
		case v < e[2]:
			return RatingGood
		case v < e[3]:
			return RatingAverage
		}
		return RatingPoor
	}
	switch {
	case v >= e[3]:
		return RatingExcellent
	case v >= e[2]:
		return RatingGood
	case v >= e[1]:
		return RatingAverage
	}
	return RatingPoor
}

// Regions lists the categories with their bounds in ascending axis order.
func (b Bands) Regions() []Region {
	order := []Rating{RatingExcellent, RatingGood, RatingAverage, RatingPoor}
	if b.Direction == HigherIsBetter {
		order = []Rating{RatingPoor, RatingAverage, RatingGood, RatingExcellent}
	}
	out := make([]Region, len(order))
	for i, r := range order {
		out[i] = Region{Rating: r, From: b.Edges[i], To: b.Edges[i+1]}
	}
	return out
}

// Region is one coloured band of a chart.
type Region struct {
	Rating Rating
	From   float64
	To     float64
}
