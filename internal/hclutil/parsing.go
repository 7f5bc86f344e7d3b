// Package hclutil holds the small HCL decoding helpers shared by the entity
// and unit file parsers. Every helper evaluates expressions without an
// evaluation context: entity files are data, so variables and functions are
// rejected by HCL itself.
package hclutil

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// FindUniqueBlock searches a slice of blocks for all blocks of a given name.
// It returns a diagnostic error if more than one block of that name is found.
// If no block is found, it returns nil.
func FindUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type == name {
			if found != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate \"" + name + "\" block",
					Detail:   "Only one \"" + name + "\" block is allowed.",
					Subject:  &block.DefRange,
				})
				continue
			}
			found = block
		}
	}

	return found, diags
}

// Errorf builds an error diagnostic pointing at subject.
func Errorf(subject hcl.Range, summary, format string, args ...any) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
		Subject:  subject.Ptr(),
	}
}

// literal evaluates expr and rejects null or unknown results.
func literal(expr hcl.Expression, what string) (cty.Value, hcl.Diagnostics) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if val.IsNull() || !val.IsWhollyKnown() {
		return cty.NilVal, hcl.Diagnostics{Errorf(expr.Range(), "Invalid "+what, "A literal %s is required here.", what)}
	}
	return val, nil
}

// Number decodes a finite number.
func Number(expr hcl.Expression) (float64, hcl.Diagnostics) {
	val, diags := literal(expr, "number")
	if diags.HasErrors() {
		return 0, diags
	}
	if !val.Type().Equals(cty.Number) {
		return 0, hcl.Diagnostics{Errorf(expr.Range(), "Invalid number", "Expected a number, got %s.", val.Type().FriendlyName())}
	}
	f, _ := val.AsBigFloat().Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, hcl.Diagnostics{Errorf(expr.Range(), "Non-finite number", "The value does not fit a finite 64-bit float.")}
	}
	return f, nil
}

// Decimal decodes a number literal, or a string holding one, without
// passing it through float64.
func Decimal(expr hcl.Expression) (decimal.Decimal, hcl.Diagnostics) {
	val, diags := literal(expr, "number")
	if diags.HasErrors() {
		return decimal.Zero, diags
	}
	var text string
	switch {
	case val.Type().Equals(cty.Number):
		text = val.AsBigFloat().Text('g', -1)
	case val.Type().Equals(cty.String):
		text = val.AsString()
	default:
		return decimal.Zero, hcl.Diagnostics{Errorf(expr.Range(), "Invalid number", "Expected a number, got %s.", val.Type().FriendlyName())}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, hcl.Diagnostics{Errorf(expr.Range(), "Invalid number", "%q is not a decimal number: %s.", text, err)}
	}
	return d, nil
}

// Numbers decodes a list or tuple of finite numbers.
func Numbers(expr hcl.Expression) ([]float64, hcl.Diagnostics) {
	val, diags := literal(expr, "list of numbers")
	if diags.HasErrors() {
		return nil, diags
	}
	list, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid list of numbers", "%s.", err)}
	}
	var out []float64
	if err := gocty.FromCtyValue(list, &out); err != nil {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid list of numbers", "%s.", err)}
	}
	for i, f := range out {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, hcl.Diagnostics{Errorf(expr.Range(), "Non-finite number", "Element %d does not fit a finite 64-bit float.", i)}
		}
	}
	if out == nil {
		out = []float64{}
	}
	return out, nil
}

// Strings decodes a list or tuple of strings.
func Strings(expr hcl.Expression) ([]string, hcl.Diagnostics) {
	val, diags := literal(expr, "list of strings")
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.Type().IsListType() && !val.Type().IsTupleType() && !val.Type().IsSetType() {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid list of strings", "Expected a list, got %s.", val.Type().FriendlyName())}
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid list of strings", "%s.", err)}
	}
	var out []string
	if err := gocty.FromCtyValue(list, &out); err != nil {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid list of strings", "%s.", err)}
	}
	return out, nil
}

// String decodes a single string.
func String(expr hcl.Expression) (string, hcl.Diagnostics) {
	val, diags := literal(expr, "string")
	if diags.HasErrors() {
		return "", diags
	}
	if !val.Type().Equals(cty.String) {
		return "", hcl.Diagnostics{Errorf(expr.Range(), "Invalid string", "Expected a string, got %s.", val.Type().FriendlyName())}
	}
	return val.AsString(), nil
}

// Int decodes a whole number.
func Int(expr hcl.Expression) (int, hcl.Diagnostics) {
	f, diags := Number(expr)
	if diags.HasErrors() {
		return 0, diags
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, hcl.Diagnostics{Errorf(expr.Range(), "Invalid integer", "%v is not a whole number.", f)}
	}
	return int(f), nil
}

// YearMap decodes an object such as `{ "2030" = 4.5 }` into values keyed by year.
func YearMap(expr hcl.Expression) (map[int]float64, hcl.Diagnostics) {
	val, diags := literal(expr, "map of numbers")
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid map of numbers", "Expected an object keyed by year, got %s.", val.Type().FriendlyName())}
	}
	m, err := convert.Convert(val, cty.Map(cty.Number))
	if err != nil {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid map of numbers", "%s.", err)}
	}
	var raw map[string]float64
	if err := gocty.FromCtyValue(m, &raw); err != nil {
		return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid map of numbers", "%s.", err)}
	}
	out := make(map[int]float64, len(raw))
	for k, v := range raw {
		year, err := strconv.Atoi(k)
		if err != nil {
			return nil, hcl.Diagnostics{Errorf(expr.Range(), "Invalid year", "Key %q is not a year.", k)}
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, hcl.Diagnostics{Errorf(expr.Range(), "Non-finite number", "The value for %d does not fit a finite 64-bit float.", year)}
		}
		out[year] = v
	}
	return out, nil
}
