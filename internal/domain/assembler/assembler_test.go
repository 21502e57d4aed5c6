package assembler_test

import (
	"testing"

	"github.com/okian/perfreport/internal/domain/assembler"
	"github.com/okian/perfreport/internal/domain/schema"
	. "github.com/smartystreets/goconvey/convey"
)

func chartIDs(charts []assembler.ChartSpec) []string {
	ids := make([]string, 0, len(charts))
	for _, c := range charts {
		ids = append(ids, c.ID)
	}
	return ids
}

func derivedKeys(a assembler.Athlete) []string {
	keys := []string{}
	for _, v := range a.Derived {
		keys = append(keys, v.Key)
	}
	return keys
}

func TestBands(t *testing.T) {
	Convey("Given the 10m sprint bands", t, func() {
		b := assembler.Bands{Direction: assembler.LowerIsBetter, Edges: [5]float64{1.65, 1.80, 1.85, 1.91, 2.0}}

		Convey("Then faster times rate better", func() {
			So(b.Rate(1.50), ShouldEqual, assembler.RatingExcellent)
			So(b.Rate(1.79), ShouldEqual, assembler.RatingExcellent)
			So(b.Rate(1.80), ShouldEqual, assembler.RatingGood)
			So(b.Rate(1.88), ShouldEqual, assembler.RatingAverage)
			So(b.Rate(1.95), ShouldEqual, assembler.RatingPoor)
			So(b.Rate(3.00), ShouldEqual, assembler.RatingPoor)
		})

		Convey("Then regions ascend from excellent to poor", func() {
			r := b.Regions()
			So(r, ShouldHaveLength, 4)
			So(r[0].Rating, ShouldEqual, assembler.RatingExcellent)
			So(r[0].From, ShouldEqual, 1.65)
			So(r[3].Rating, ShouldEqual, assembler.RatingPoor)
			So(r[3].To, ShouldEqual, 2.0)
		})
	})

	Convey("Given the CMJ bands", t, func() {
		b := assembler.Bands{Direction: assembler.HigherIsBetter, Edges: [5]float64{30, 38, 45, 52, 60}}

		Convey("Then higher jumps rate better", func() {
			So(b.Rate(20), ShouldEqual, assembler.RatingPoor)
			So(b.Rate(38), ShouldEqual, assembler.RatingAverage)
			So(b.Rate(47), ShouldEqual, assembler.RatingGood)
			So(b.Rate(52), ShouldEqual, assembler.RatingExcellent)
			So(b.Regions()[0].Rating, ShouldEqual, assembler.RatingPoor)
		})
	})
}

func TestDerivedMetrics(t *testing.T) {
	reg := schema.DefaultRegistry()
	a := assembler.New(reg)

	Convey("Given uploads with different dependency subsets", t, func() {
		Convey("When neither weight nor height is present", func() {
			av := reg.Resolve([]string{"Name", "CMJ"})
			av.Populate([][]string{{"Ana", "40"}})
			ath := a.Athlete(av, []string{"Ana", "40"}, 0, schema.SeasonOff)

			So(derivedKeys(ath), ShouldBeEmpty)
			So(a.Derivable(av, schema.SeasonOff), ShouldBeEmpty)
		})

		Convey("When only weight is present", func() {
			av := reg.Resolve([]string{"Name", "Weight"})
			av.Populate([][]string{{"Ana", "80"}})
			ath := a.Athlete(av, []string{"Ana", "80"}, 0, schema.SeasonOff)

			So(derivedKeys(ath), ShouldBeEmpty)
		})

		Convey("When weight and height are both present", func() {
			rows := [][]string{
				{"Ana", "80", ""},
				{"Ben", "81", "180"},
			}
			av := reg.Resolve([]string{"Name", "Weight (kg)", "Height (cm)"})
			av.Populate(rows)

			Convey("Then a row missing height gets no BMI", func() {
				ath := a.Athlete(av, rows[0], 0, schema.SeasonOff)
				So(derivedKeys(ath), ShouldBeEmpty)
				_, ok := ath.Lookup(assembler.KeyBMI)
				So(ok, ShouldBeFalse)
			})

			Convey("Then a complete row gets weight / height_m squared", func() {
				ath := a.Athlete(av, rows[1], 1, schema.SeasonOff)
				bmi, ok := ath.Lookup(assembler.KeyBMI)
				So(ok, ShouldBeTrue)
				So(bmi.Value, ShouldAlmostEqual, 81/(1.8*1.8), 1e-9)
			})
		})

		Convey("When height is zero", func() {
			av := reg.Resolve([]string{"Weight", "Height"})
			av.Populate([][]string{{"80", "0"}})
			ath := a.Athlete(av, []string{"80", "0"}, 0, schema.SeasonOff)
			So(derivedKeys(ath), ShouldBeEmpty)
		})

		Convey("When wattbike power is present in season", func() {
			av := reg.Resolve([]string{"Name", "Weight", "Wattbike_6s"})
			row := []string{"Ana", "80", "1200"}
			av.Populate([][]string{row})

			Convey("Then relative power is derived in season only", func() {
				in := a.Athlete(av, row, 0, schema.SeasonIn)
				ptw, ok := in.Lookup(assembler.KeyPowerToWeight)
				So(ok, ShouldBeTrue)
				So(ptw.Value, ShouldEqual, 15)
				So(ptw.Rating, ShouldEqual, assembler.RatingAverage)

				off := a.Athlete(av, row, 0, schema.SeasonOff)
				_, ok = off.Lookup(assembler.KeyPowerToWeight)
				So(ok, ShouldBeFalse)
				_, ok = off.Lookup(schema.KeyWattbike6s)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestCharts(t *testing.T) {
	reg := schema.DefaultRegistry()
	a := assembler.New(reg)

	Convey("Given a full OFF season upload", t, func() {
		headers := []string{"Name", "Weight", "Height", "Sprint", "Sprint_30m", "CMJ", "Wattbike_6s"}
		rows := [][]string{{"Ana", "80", "180", "1.78", "4.20", "47", "1100"}}
		av := reg.Resolve(headers)
		av.Populate(rows)

		Convey("Then only in-season charts with data exist", func() {
			So(chartIDs(a.Charts(av, schema.SeasonOff)), ShouldResemble, []string{"sprint_10m", "sprint_30m", "cmj"})
			So(chartIDs(a.Charts(av, schema.SeasonIn)), ShouldResemble, []string{"cmj", "wattbike"})
		})

		Convey("Then every section is present", func() {
			So(a.Sections(av, schema.SeasonOff), ShouldResemble, []assembler.Section{
				assembler.SectionProfile, assembler.SectionAnthropometrics,
				assembler.SectionPerformance, assembler.SectionDerived,
			})
		})
	})

	Convey("Given a column that matched but holds no numbers", t, func() {
		av := reg.Resolve([]string{"Name", "CMJ"})
		av.Populate([][]string{{"Ana", "DNS"}, {"Ben", ""}})

		Convey("Then no chart is offered and nothing fails", func() {
			So(a.Charts(av, schema.SeasonOff), ShouldBeEmpty)
			So(a.Sections(av, schema.SeasonOff), ShouldResemble, []assembler.Section{assembler.SectionProfile})
		})
	})

	Convey("Given a Yo-Yo upload", t, func() {
		av := reg.Resolve([]string{"Player", "Yo-Yo test (level)"})
		av.Populate([][]string{{"Ana", "18.2"}})

		Convey("Then the yoyo chart exists in both seasons", func() {
			So(av.Available(schema.KeyYoYo), ShouldBeTrue)
			So(chartIDs(a.Charts(av, schema.SeasonOff)), ShouldResemble, []string{"yoyo"})
			So(chartIDs(a.Charts(av, schema.SeasonIn)), ShouldResemble, []string{"yoyo"})
		})
	})

	Convey("Given wattbike data without weight", t, func() {
		av := reg.Resolve([]string{"Wattbike_6s"})
		av.Populate([][]string{{"1200"}})

		Convey("Then the derived chart is not offered", func() {
			So(a.Charts(av, schema.SeasonIn), ShouldBeEmpty)
		})
	})
}

func TestAssemble(t *testing.T) {
	reg := schema.DefaultRegistry()
	a := assembler.New(reg)

	Convey("Given a partially populated upload", t, func() {
		rows := [][]string{
			{"Ana", "80", "180", "1.70"},
			{"", "", "", ""},
			{"", "75", "", "n/a"},
		}
		av := reg.Resolve([]string{"Name", "Weight", "Height", "Sprint"})
		av.Populate(rows)
		res := a.Assemble(av, rows, schema.SeasonOff)

		Convey("Then blank rows are skipped and row indexes are kept", func() {
			So(res.Athletes, ShouldHaveLength, 2)
			So(res.Athletes[0].Row, ShouldEqual, 0)
			So(res.Athletes[1].Row, ShouldEqual, 2)
		})

		Convey("Then a missing name falls back to the row number", func() {
			So(res.Athletes[1].Name, ShouldEqual, "Athlete 3")
		})

		Convey("Then missing numbers are absent rather than zero", func() {
			_, ok := res.Athletes[1].Lookup(schema.KeySprint10m)
			So(ok, ShouldBeFalse)
			w, ok := res.Athletes[1].Lookup(schema.KeyWeight)
			So(ok, ShouldBeTrue)
			So(w.Value, ShouldEqual, 75)
		})

		Convey("Then charted values carry a rating", func() {
			s, ok := res.Athletes[0].Lookup(schema.KeySprint10m)
			So(ok, ShouldBeTrue)
			So(s.Rating, ShouldEqual, assembler.RatingExcellent)
		})

		Convey("Then athletes can be found by row", func() {
			ath, ok := res.Athlete(2)
			So(ok, ShouldBeTrue)
			So(ath.Name, ShouldEqual, "Athlete 3")
			_, ok = res.Athlete(1)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a custom derived table", t, func() {
		custom := assembler.New(reg, assembler.WithDerived(assembler.DerivedSpec{
			Key: "double_cmj", DependsOn: []string{schema.KeyCMJ},
			Seasons: []schema.Season{schema.SeasonOff},
			Compute: func(v map[string]float64) (float64, bool) { return v[schema.KeyCMJ] * 2, true },
		}))
		av := reg.Resolve([]string{"CMJ"})
		av.Populate([][]string{{"40"}})

		ath := custom.Athlete(av, []string{"40"}, 0, schema.SeasonOff)
		v, ok := ath.Lookup("double_cmj")
		So(ok, ShouldBeTrue)
		So(v.Value, ShouldEqual, 80)
	})
}
