package config

import (
	"fmt"
	"slices"
)

// HoursPerDay is the length of a representative day.
const HoursPerDay = 24.0

// DaysPerYear is the number of calendar days the representative days of a
// year stand for together.
const DaysPerYear = 365.0

// HoursPerYear converts annual quantities to hourly ones.
const HoursPerYear = HoursPerDay * DaysPerYear

// TimeSlice is one modelled period: an hour block of a representative day of
// a model year.
type TimeSlice struct {
	Index    int    // position in TimeStructure.Slices
	Label    string // y<year>d<day>h<hh>
	Year     int
	Day      string
	Hour     int
	Duration float64 // hours
	Weight   float64 // calendar days represented by the slice's day
}

// TimeStructure is the resolved time structure of a Configuration.
type TimeStructure struct {
	Source string   `yaml:"source,omitempty"`
	Years  []int    `yaml:"years,flow"`
	Days   []string `yaml:"days,flow"`
	Hours  int      `yaml:"hours"`
}

// NewTimeStructure checks and copies a declared time structure.
func NewTimeStructure(source string, years []int, days []string, hours int) (TimeStructure, error) {
	if len(years) == 0 {
		return TimeStructure{}, fmt.Errorf("time structure %q: at least one model year is required", source)
	}
	for i := 1; i < len(years); i++ {
		if years[i] <= years[i-1] {
			return TimeStructure{}, fmt.Errorf("time structure %q: years must be strictly increasing", source)
		}
	}
	if len(days) == 0 {
		return TimeStructure{}, fmt.Errorf("time structure %q: at least one representative day is required", source)
	}
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		if d == "" || seen[d] {
			return TimeStructure{}, fmt.Errorf("time structure %q: day labels must be unique and non-empty", source)
		}
		seen[d] = true
	}
	if hours < 1 {
		return TimeStructure{}, fmt.Errorf("time structure %q: hours must be at least 1, got %d", source, hours)
	}
	return TimeStructure{Source: source, Years: slices.Clone(years), Days: slices.Clone(days), Hours: hours}, nil
}

// DefaultTimeStructure is used when no time-structure entity exists: one
// model year, one day, one slice of 24 hours standing for the whole year.
func DefaultTimeStructure(year int) TimeStructure {
	return TimeStructure{Years: []int{year}, Days: []string{"0"}, Hours: 1}
}

func (t TimeStructure) clone() TimeStructure {
	return TimeStructure{Source: t.Source, Years: slices.Clone(t.Years), Days: slices.Clone(t.Days), Hours: t.Hours}
}

// SliceDuration returns the length of one slice in hours.
func (t TimeStructure) SliceDuration() float64 {
	return HoursPerDay / float64(t.Hours)
}

// DayWeight returns how many calendar days each representative day stands for.
func (t TimeStructure) DayWeight() float64 {
	return DaysPerYear / float64(len(t.Days))
}

// SliceCount returns the total number of slices over all model years.
func (t TimeStructure) SliceCount() int {
	return len(t.Years) * len(t.Days) * t.Hours
}

// BaseYear returns the first model year, the reference for discounting.
func (t TimeStructure) BaseYear() int {
	if len(t.Years) == 0 {
		return 0
	}
	return t.Years[0]
}

// Slices enumerates the slices in year, day, hour order.
func (t TimeStructure) Slices() []TimeSlice {
	out := make([]TimeSlice, 0, t.SliceCount())
	duration, weight := t.SliceDuration(), t.DayWeight()
	for _, y := range t.Years {
		for _, d := range t.Days {
			for h := 0; h < t.Hours; h++ {
				out = append(out, TimeSlice{
					Index:    len(out),
					Label:    SliceLabel(y, d, h),
					Year:     y,
					Day:      d,
					Hour:     h,
					Duration: duration,
					Weight:   weight,
				})
			}
		}
	}
	return out
}

// SliceLabel formats the label of a slice.
func SliceLabel(year int, day string, hour int) string {
	return fmt.Sprintf("y%dd%sh%02d", year, day, hour)
}

// YearGap returns the number of years between model year y and the next one.
// The last year repeats the previous gap, or 1 for a single-year horizon.
func (t TimeStructure) YearGap(y int) int {
	i := slices.Index(t.Years, y)
	switch {
	case i < 0:
		return 1
	case i+1 < len(t.Years):
		return t.Years[i+1] - y
	case i > 0:
		return y - t.Years[i-1]
	default:
		return 1
	}
}
