package schema_test

import (
	"testing"

	"github.com/okian/perfreport/internal/domain/schema"
	. "github.com/smartystreets/goconvey/convey"
)

func keysOf(av *schema.AvailabilityMap) map[string]string {
	out := map[string]string{}
	for _, b := range av.Bindings {
		out[b.Header] = b.Key
	}
	return out
}

func TestRegistry(t *testing.T) {
	Convey("Given the default registry", t, func() {
		reg := schema.DefaultRegistry()

		Convey("Then every canonical key is present in registry order", func() {
			So(reg.Keys(), ShouldResemble, []string{
				schema.KeyName, schema.KeyWeight, schema.KeyHeight, schema.KeySprint10m,
				schema.KeySprint30m, schema.KeyCMJ, schema.KeyWattbike6s, schema.KeyYoYo,
			})
		})

		Convey("Then metrics are returned as copies", func() {
			m, ok := reg.Metric(schema.KeyCMJ)
			So(ok, ShouldBeTrue)
			m.Synonyms[0] = "mutated"
			again, _ := reg.Metric(schema.KeyCMJ)
			So(again.Synonyms[0], ShouldNotEqual, "mutated")
		})

		Convey("Then season applicability follows the test battery", func() {
			sprint, _ := reg.Metric(schema.KeySprint30m)
			watt, _ := reg.Metric(schema.KeyWattbike6s)
			So(sprint.AppliesTo(schema.SeasonOff), ShouldBeTrue)
			So(sprint.AppliesTo(schema.SeasonIn), ShouldBeFalse)
			So(watt.AppliesTo(schema.SeasonIn), ShouldBeTrue)
		})
	})

	Convey("Given an inconsistent metric table", t, func() {
		Convey("When two metrics share a key", func() {
			_, err := schema.NewRegistry(schema.Metric{Key: "a"}, schema.Metric{Key: "a"})
			So(err, ShouldWrap, schema.ErrDuplicateKey)
		})

		Convey("When two metrics share a normalized synonym", func() {
			_, err := schema.NewRegistry(
				schema.Metric{Key: "a", Synonyms: []string{"Top Speed"}},
				schema.Metric{Key: "b", Synonyms: []string{"top-speed"}},
			)
			So(err, ShouldWrap, schema.ErrDuplicateAlias)
		})

		Convey("When a key is empty", func() {
			_, err := schema.NewRegistry(schema.Metric{})
			So(err, ShouldEqual, schema.ErrEmptyKey)
		})
	})
}

func TestResolve(t *testing.T) {
	reg := schema.DefaultRegistry()

	Convey("Given a header row", t, func() {
		Convey("When headers match keys and synonyms exactly", func() {
			av := reg.Resolve([]string{"Name", "Weight (Kg)", "Height (cm)", "Sprint", "Sprint_30m", "CMJ"})

			Convey("Then every header binds as an exact match", func() {
				So(keysOf(av), ShouldResemble, map[string]string{
					"Name":        schema.KeyName,
					"Weight (Kg)": schema.KeyWeight,
					"Height (cm)": schema.KeyHeight,
					"Sprint":      schema.KeySprint10m,
					"Sprint_30m":  schema.KeySprint30m,
					"CMJ":         schema.KeyCMJ,
				})
				for _, b := range av.Bindings {
					So(b.Exact, ShouldBeTrue)
				}
				So(av.Unrecognized, ShouldBeEmpty)
			})
		})

		Convey("When the Yo-Yo header carries a unit", func() {
			av := reg.Resolve([]string{"Yo-Yo test (level)"})
			So(keysOf(av)["Yo-Yo test (level)"], ShouldEqual, schema.KeyYoYo)
		})

		Convey("When a header only contains an alias", func() {
			av := reg.Resolve([]string{"CMJ Best (cm)", "Sprint 30m Time (s)"})

			Convey("Then the longest contained alias wins", func() {
				keys := keysOf(av)
				So(keys["CMJ Best (cm)"], ShouldEqual, schema.KeyCMJ)
				So(keys["Sprint 30m Time (s)"], ShouldEqual, schema.KeySprint30m)
				So(av.Bindings[0].Exact, ShouldBeFalse)
			})
		})

		Convey("When a header contains two aliases of equal length", func() {
			av := reg.Resolve([]string{"Weight Height Ratio"})

			Convey("Then it binds once, to the earlier registry entry", func() {
				So(av.Bindings, ShouldHaveLength, 1)
				So(av.Bindings[0].Key, ShouldEqual, schema.KeyWeight)
				So(av.Bound(schema.KeyHeight), ShouldBeFalse)
			})
		})

		Convey("When a header is a whole word of an alias", func() {
			av := reg.Resolve([]string{"Countermovement"})
			So(keysOf(av)["Countermovement"], ShouldEqual, schema.KeyCMJ)
		})

		Convey("When a header is only part of a word in an alias", func() {
			av := reg.Resolve([]string{"Watt"})
			So(av.Bindings, ShouldBeEmpty)
			So(av.Unrecognized, ShouldResemble, []string{"Watt"})
		})

		Convey("When a header is a generic word found inside an alias", func() {
			av := reg.Resolve([]string{"Test", "Power", "Body"})

			Convey("Then it stays unrecognized", func() {
				So(av.Bindings, ShouldBeEmpty)
				So(av.Unrecognized, ShouldResemble, []string{"Test", "Power", "Body"})
			})
		})

		Convey("When a sprint header names a distance no metric measures", func() {
			av := reg.Resolve([]string{"40m Sprint (s)", "Sprint 20m", "5m Sprint", "Sprint 20 m"})

			Convey("Then no sprint key is bound", func() {
				So(av.Bindings, ShouldBeEmpty)
				So(av.Bound(schema.KeySprint10m), ShouldBeFalse)
				So(av.Bound(schema.KeySprint30m), ShouldBeFalse)
				So(av.Unrecognized, ShouldHaveLength, 4)
			})
		})

		Convey("When a sprint header names a known distance in another spelling", func() {
			av := reg.Resolve([]string{"Sprint10m Best", "Sprint 30 m Time"})

			Convey("Then it binds to the metric for that distance", func() {
				keys := keysOf(av)
				So(keys["Sprint10m Best"], ShouldEqual, schema.KeySprint10m)
				So(keys["Sprint 30 m Time"], ShouldEqual, schema.KeySprint30m)
			})
		})

		Convey("When a jump header also names height", func() {
			av := reg.Resolve([]string{"Jump Height (cm)", "Height"})
			keys := keysOf(av)
			So(keys["Jump Height (cm)"], ShouldEqual, schema.KeyCMJ)
			So(keys["Height"], ShouldEqual, schema.KeyHeight)
		})

		Convey("When a short header is too ambiguous to match", func() {
			av := reg.Resolve([]string{"ID", "m"})
			So(av.Bindings, ShouldBeEmpty)
			So(av.Unrecognized, ShouldResemble, []string{"ID", "m"})
		})

		Convey("When two headers bind to the same key", func() {
			av := reg.Resolve([]string{"Weight Morning (kg)", "Weight", "Weight"})

			Convey("Then the exact match is preferred over the earlier partial match", func() {
				So(av.Bindings, ShouldHaveLength, 1)
				So(av.Bindings[0].Index, ShouldEqual, 1)
				So(av.Bindings[0].Exact, ShouldBeTrue)
			})

			Convey("Then later duplicates are ignored rather than merged", func() {
				So(av.Duplicates, ShouldResemble, []string{"Weight", "Weight Morning (kg)"})
			})
		})

		Convey("When two partial headers compete for one key", func() {
			av := reg.Resolve([]string{"Jump Test A", "Jump Test B"})
			So(av.Bindings, ShouldHaveLength, 1)
			So(av.Bindings[0].Header, ShouldEqual, "Jump Test A")
			So(av.Duplicates, ShouldResemble, []string{"Jump Test B"})
		})

		Convey("When a header is unknown", func() {
			av := reg.Resolve([]string{"Name", "Favourite Colour"})
			So(av.Unrecognized, ShouldResemble, []string{"Favourite Colour"})
			So(av.Bound(schema.KeyName), ShouldBeTrue)
		})

		Convey("Then bindings are reported in file order", func() {
			av := reg.Resolve([]string{"Peak Power Output", "CMJ", "Name"})
			So(av.Bindings[0].Header, ShouldEqual, "Peak Power Output")
			So(av.Bindings[1].Header, ShouldEqual, "CMJ")
			So(av.Bindings[2].Header, ShouldEqual, "Name")
		})
	})
}
