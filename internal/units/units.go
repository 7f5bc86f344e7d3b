// Package units is the unit registry: canonical unit definitions, their
// dimensions, and exact multiplicative conversion factors to a single base
// unit per dimension.
//
// A registry is built once and is read-only afterwards. Every conversion is a
// pure function of its arguments, which keeps compiled configurations
// reproducible.
package units

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Dimension names the physical (or monetary) quantity a unit measures.
// Compound dimensions join simple ones with "/", e.g. "currency/energy".
type Dimension string

const (
	Currency      Dimension = "currency"
	Energy        Dimension = "energy"
	Power         Dimension = "power"
	Time          Dimension = "time"
	Dimensionless Dimension = "dimensionless"
)

// significantDigits is the precision kept when a factor is a quotient
// (e.g. 1/3.6). It counts significant digits, not decimal places, so tiny
// factors keep their precision instead of rounding to zero.
const significantDigits = 28

// simpleDimensions maps each simple dimension to its base unit symbol.
var simpleDimensions = map[Dimension]string{
	Currency:      "USD",
	Energy:        "MWh",
	Power:         "MW",
	Time:          "h",
	Dimensionless: "1",
}

// IsSimple reports whether d is one of the built-in simple dimensions.
func (d Dimension) IsSimple() bool {
	_, ok := simpleDimensions[d]
	return ok
}

// Unit is a resolved unit: Factor converts a magnitude in this unit into the
// base unit of its dimension.
type Unit struct {
	Symbol    string
	Dimension Dimension
	Factor    decimal.Decimal
}

// Definition declares a custom simple unit, typically a currency whose
// exchange rate must be cited.
type Definition struct {
	Symbol    string
	Dimension Dimension
	Factor    decimal.Decimal
	Sources   []string
}

// builtin lists the units every registry knows. Factors are exact decimal
// literals relative to the base unit.
var builtin = []struct {
	symbol string
	dim    Dimension
	factor string
}{
	{"USD", Currency, "1"},
	{"kUSD", Currency, "1000"},
	{"MUSD", Currency, "1000000"},
	{"BUSD", Currency, "1000000000"},

	{"Wh", Energy, "0.000001"},
	{"kWh", Energy, "0.001"},
	{"MWh", Energy, "1"},
	{"GWh", Energy, "1000"},
	{"TWh", Energy, "1000000"},
	{"MJ", Energy, "1/3600"},
	{"GJ", Energy, "1/3.6"},
	{"TJ", Energy, "1000/3.6"},
	{"PJ", Energy, "1000000/3.6"},

	{"W", Power, "0.000001"},
	{"kW", Power, "0.001"},
	{"MW", Power, "1"},
	{"GW", Power, "1000"},
	{"TW", Power, "1000000"},

	{"s", Time, "1/3600"},
	{"min", Time, "1/60"},
	{"h", Time, "1"},
	{"d", Time, "24"},
	{"wk", Time, "168"},
	{"yr", Time, "8760"},
	{"year", Time, "8760"},
	{"a", Time, "8760"},

	{"1", Dimensionless, "1"},
	{"-", Dimensionless, "1"},
	{"%", Dimensionless, "0.01"},
}

// Registry resolves unit symbols. It has no mutating methods; build a new one
// to add definitions.
type Registry struct {
	units   map[string]Unit
	sources map[string][]string
}

// New returns a registry with the built-in units plus the given definitions.
// A definition may not redefine a known symbol or introduce a new dimension.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{
		units:   make(map[string]Unit, len(builtin)+len(defs)),
		sources: make(map[string][]string),
	}
	for _, b := range builtin {
		f, err := parseFactor(b.factor)
		if err != nil {
			panic(fmt.Sprintf("units: bad built-in factor for %s: %v", b.symbol, err))
		}
		r.units[b.symbol] = Unit{Symbol: b.symbol, Dimension: b.dim, Factor: f}
	}

	for _, def := range defs {
		switch {
		case def.Symbol == "" || strings.ContainsAny(def.Symbol, "/ \t"):
			return nil, &UnitError{Unit: def.Symbol, Reason: "symbol must be a single word without '/'", kind: ErrInvalidDefinition}
		case !def.Dimension.IsSimple():
			return nil, &UnitError{Unit: def.Symbol, Reason: fmt.Sprintf("dimension %q is not one of %s", def.Dimension, strings.Join(SimpleDimensions(), ", ")), kind: ErrInvalidDefinition}
		case !def.Factor.IsPositive():
			return nil, &UnitError{Unit: def.Symbol, Reason: "factor must be positive", kind: ErrInvalidDefinition}
		case len(def.Sources) == 0:
			return nil, &UnitError{Unit: def.Symbol, Reason: "custom units need at least one source", kind: ErrInvalidDefinition}
		}
		if _, exists := r.units[def.Symbol]; exists {
			return nil, &UnitError{Unit: def.Symbol, Reason: "symbol is already defined", kind: ErrInvalidDefinition}
		}
		r.units[def.Symbol] = Unit{Symbol: def.Symbol, Dimension: def.Dimension, Factor: def.Factor}
		r.sources[def.Symbol] = append([]string(nil), def.Sources...)
	}
	return r, nil
}

// parseFactor accepts "x" or "x/y" decimal literals.
func parseFactor(s string) (decimal.Decimal, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return n, nil
	}
	d, err := decimal.NewFromString(den)
	if err != nil {
		return decimal.Zero, err
	}
	return quotient(n, d), nil
}

// quotient divides a by b, rounded to significantDigits significant digits.
func quotient(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		return decimal.Zero
	}
	// Position of the leading digit: 123 -> 3, 0.0012 -> -2.
	lead := func(x decimal.Decimal) int { return x.NumDigits() + int(x.Exponent()) }
	places := significantDigits - (lead(a) - lead(b)) + 1
	if places < 0 {
		places = 0
	}
	return a.DivRound(b, int32(places))
}

// SimpleDimensions returns the simple dimension names, sorted.
func SimpleDimensions() []string {
	out := make([]string, 0, len(simpleDimensions))
	for d := range simpleDimensions {
		out = append(out, string(d))
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a symbol. Compound symbols such as "USD/kWh" or
// "USD/kW/yr" divide the first unit by the following ones.
func (r *Registry) Lookup(symbol string) (Unit, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Unit{}, &UnitError{Unit: symbol, Reason: "empty unit", kind: ErrUnknownUnit}
	}
	if u, ok := r.units[symbol]; ok {
		return u, nil
	}
	parts := strings.Split(symbol, "/")
	if len(parts) == 1 {
		return Unit{}, &UnitError{Unit: symbol, Reason: "not defined in the registry", kind: ErrUnknownUnit}
	}

	dims := make([]string, 0, len(parts))
	var factor decimal.Decimal
	for i, part := range parts {
		u, ok := r.units[strings.TrimSpace(part)]
		if !ok {
			return Unit{}, &UnitError{Unit: symbol, Reason: fmt.Sprintf("component %q is not defined in the registry", part), kind: ErrUnknownUnit}
		}
		dims = append(dims, string(u.Dimension))
		if i == 0 {
			factor = u.Factor
		} else {
			factor = quotient(factor, u.Factor)
		}
	}
	return Unit{Symbol: symbol, Dimension: Dimension(strings.Join(dims, "/")), Factor: factor}, nil
}

// Known reports whether symbol resolves.
func (r *Registry) Known(symbol string) bool {
	_, err := r.Lookup(symbol)
	return err == nil
}

// Sources returns the citations of a custom unit definition.
func (r *Registry) Sources(symbol string) []string {
	return append([]string(nil), r.sources[symbol]...)
}

// BaseUnit returns the base unit symbol of a simple or compound dimension.
func (r *Registry) BaseUnit(dim Dimension) (string, error) {
	parts := strings.Split(string(dim), "/")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		base, ok := simpleDimensions[Dimension(p)]
		if !ok {
			return "", &UnitError{Unit: string(dim), Reason: fmt.Sprintf("unknown dimension %q", p), kind: ErrUnknownDimension}
		}
		symbols = append(symbols, base)
	}
	return strings.Join(symbols, "/"), nil
}

// Ratio returns the exact factor that converts magnitudes from one unit to
// another of the same dimension.
func (r *Registry) Ratio(from, to string) (decimal.Decimal, error) {
	fu, err := r.Lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	tu, err := r.Lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	if fu.Dimension != tu.Dimension {
		return decimal.Zero, &UnitError{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("dimension %s cannot be converted to %s", fu.Dimension, tu.Dimension),
			kind:   ErrDimensionMismatch,
		}
	}
	return quotient(fu.Factor, tu.Factor), nil
}

// Convert converts value from one unit to another of the same dimension.
func (r *Registry) Convert(value float64, from, to string) (float64, error) {
	ratio, err := r.Ratio(from, to)
	if err != nil {
		return 0, err
	}
	return Apply(value, ratio)
}

// Conversion is the result of normalizing a magnitude into base units.
type Conversion struct {
	Value     float64
	BaseUnit  string
	Dimension Dimension
	Factor    decimal.Decimal
}

// ToBase converts value expressed in unit into its dimension's base unit.
func (r *Registry) ToBase(value float64, unit string) (Conversion, error) {
	u, err := r.Lookup(unit)
	if err != nil {
		return Conversion{}, err
	}
	base, err := r.BaseUnit(u.Dimension)
	if err != nil {
		return Conversion{}, err
	}
	v, err := Apply(value, u.Factor)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Value: v, BaseUnit: base, Dimension: u.Dimension, Factor: u.Factor}, nil
}

// Apply multiplies value by an exact factor.
func Apply(value float64, factor decimal.Decimal) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &UnitError{Reason: fmt.Sprintf("cannot convert non-finite value %v", value), kind: ErrNonFinite}
	}
	if factor.IsZero() {
		return 0, nil
	}
	if factor.Equal(decimal.NewFromInt(1)) {
		return value, nil
	}
	out, _ := decimal.NewFromFloat(value).Mul(factor).Float64()
	return out, nil
}
