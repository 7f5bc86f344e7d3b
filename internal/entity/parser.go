// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file turns one HCL entity file into an Entity.
//
// Why collect errors instead of stopping at the first one?
//
// Entity files are written by hand and often copied from one another, so a
// broken file tends to be broken in several places. Reporting every problem
// found in a file at once saves the author a fix-and-rerun cycle per mistake.
// The parser therefore keeps going after a bad parameter and returns all
// ParseErrors joined together.
package entity

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/restore/internal/hclutil"
)

// rootSchema expects exactly one `entity "<kind>" "<id>"` block.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "entity", LabelNames: []string{"kind", "id"}},
	},
}

var entityBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "sector"},
		{Name: "commodity"},
		{Name: "costs"},
		{Name: "years"},
		{Name: "days"},
		{Name: "hours"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "parameter", LabelNames: []string{"name"}},
		{Type: string(Input), LabelNames: []string{"target"}},
		{Type: string(Output), LabelNames: []string{"target"}},
	},
}

// parameterSchema is the body of a `parameter` block. Required fields are
// checked by hand so the error can name the missing field.
var parameterSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "value"},
		{Name: "values"},
		{Name: "annual"},
		{Name: "unit"},
		{Name: "sources"},
		{Name: "note"},
		{Name: "fill"},
	},
}

var linkSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "commodity"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "parameter", LabelNames: []string{"name"}},
	},
}

// ParseFile reads and parses a single entity file.
func ParseFile(path string) (*Entity, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: path, Detail: err.Error()}
	}
	return Parse(src, path)
}

// Parse parses the source of a single entity file. filename is used for error
// messages and recorded on the entity.
func Parse(src []byte, filename string) (*Entity, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Join(fromDiagnostics(filename, "", diags)...)
	}

	content, diags := file.Body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, errors.Join(fromDiagnostics(filename, "", diags)...)
	}

	block, diags := hclutil.FindUniqueBlock(content.Blocks, "entity")
	if diags.HasErrors() {
		return nil, errors.Join(fromDiagnostics(filename, "", diags)...)
	}
	if block == nil {
		return nil, &ParseError{File: filename, Detail: `no "entity" block found; each file must define exactly one entity`}
	}

	p := &fileParser{file: filename, entity: block.Labels[1]}
	spec := p.parseEntity(block)
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return New(spec), nil
}

// fileParser accumulates errors while walking one entity block.
type fileParser struct {
	file   string
	entity string
	errs   []error
}

func (p *fileParser) fail(rng hcl.Range, param, field, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		File:      p.file,
		Line:      rng.Start.Line,
		Entity:    p.entity,
		Parameter: param,
		Field:     field,
		Detail:    fmt.Sprintf(format, args...),
	})
}

func (p *fileParser) diags(diags hcl.Diagnostics) bool {
	p.errs = append(p.errs, fromDiagnostics(p.file, p.entity, diags)...)
	return diags.HasErrors()
}

func (p *fileParser) parseEntity(block *hcl.Block) Spec {
	kind := Kind(block.Labels[0])
	spec := Spec{ID: p.entity, Kind: kind, File: p.file}

	if !kind.Valid() {
		names := make([]string, len(Kinds))
		for i, k := range Kinds {
			names[i] = string(k)
		}
		p.fail(block.DefRange, "", "", "unknown entity kind %q; expected one of %s", kind, strings.Join(names, ", "))
	}
	if !ValidID(p.entity) {
		p.fail(block.DefRange, "", "", "invalid entity identifier %q; identifiers start with a letter and contain only letters, digits, '_' and '-'", p.entity)
	}

	content, diags := block.Body.Content(entityBodySchema)
	if p.diags(diags) {
		return spec
	}

	spec.Description = p.optionalString(content, "description")
	spec.Sector = p.optionalString(content, "sector")
	spec.Commodity = p.optionalString(content, "commodity")
	if attr, ok := content.Attributes["commodity"]; ok && kind != KindNode {
		p.fail(attr.Range, "", "", `"commodity" is only valid on node entities; technologies name commodities on their input and output blocks`)
	}

	if attr, ok := content.Attributes["costs"]; ok {
		costs, diags := hclutil.Strings(attr.Expr)
		if !p.diags(diags) {
			spec.Costs = costs
		}
		if kind != KindTechnology {
			p.fail(attr.Range, "", "", `"costs" is only valid on technology entities`)
		}
	}

	spec.Time = p.parseTime(kind, block, content)
	spec.Params = p.parseParameters(content.Blocks.OfType("parameter"), "")

	for _, dir := range []Direction{Input, Output} {
		links := p.parseLinks(dir, content.Blocks.OfType(string(dir)))
		if len(links) > 0 && kind != KindTechnology {
			p.fail(block.DefRange, "", "", "%s blocks are only valid on technology entities", dir)
			continue
		}
		if dir == Input {
			spec.Inputs = links
		} else {
			spec.Outputs = links
		}
	}

	return spec
}

func (p *fileParser) optionalString(content *hcl.BodyContent, name string) string {
	attr, ok := content.Attributes[name]
	if !ok {
		return ""
	}
	s, diags := hclutil.String(attr.Expr)
	p.diags(diags)
	return s
}

// parseTime decodes years/days/hours, which are required on time-structure
// entities and rejected everywhere else.
func (p *fileParser) parseTime(kind Kind, block *hcl.Block, content *hcl.BodyContent) *TimeSpec {
	names := []string{"years", "days", "hours"}
	if kind != KindTimeStructure {
		for _, name := range names {
			if attr, ok := content.Attributes[name]; ok {
				p.fail(attr.Range, "", "", "%q is only valid on time-structure entities", name)
			}
		}
		return nil
	}

	complete := true
	for _, name := range names {
		if _, ok := content.Attributes[name]; !ok {
			missing := block.Body.MissingItemRange()
			p.fail(missing, "", "", "time-structure entities require %q", name)
			complete = false
		}
	}
	if !complete {
		return nil
	}

	ts := &TimeSpec{}
	yearsAttr := content.Attributes["years"]
	years, diags := hclutil.Numbers(yearsAttr.Expr)
	if !p.diags(diags) {
		for i, y := range years {
			if y != float64(int(y)) {
				p.fail(yearsAttr.Range, "", "", "year %v is not a whole number", y)
				continue
			}
			if i > 0 && y <= years[i-1] {
				p.fail(yearsAttr.Range, "", "", "years must be strictly increasing")
				break
			}
			ts.Years = append(ts.Years, int(y))
		}
		if len(years) == 0 {
			p.fail(yearsAttr.Range, "", "", "at least one model year is required")
		}
	}

	daysAttr := content.Attributes["days"]
	days, diags := hclutil.Strings(daysAttr.Expr)
	if !p.diags(diags) {
		seen := make(map[string]struct{}, len(days))
		for _, d := range days {
			if _, dup := seen[d]; dup {
				p.fail(daysAttr.Range, "", "", "representative day %q is listed twice", d)
			}
			seen[d] = struct{}{}
		}
		if len(days) == 0 {
			p.fail(daysAttr.Range, "", "", "at least one representative day is required")
		}
		ts.Days = days
	}

	hoursAttr := content.Attributes["hours"]
	hours, diags := hclutil.Int(hoursAttr.Expr)
	if !p.diags(diags) {
		if hours < 1 {
			p.fail(hoursAttr.Range, "", "", "hours must be at least 1, got %d", hours)
		}
		ts.Hours = hours
	}
	return ts
}

// parseParameters decodes parameter blocks. prefix qualifies names in error
// messages for per-flow parameters (e.g. "output.electricity.efficiency").
func (p *fileParser) parseParameters(blocks hcl.Blocks, prefix string) map[string]QuantitySpec {
	params := make(map[string]QuantitySpec, len(blocks))
	for _, block := range blocks {
		name := block.Labels[0]
		label := prefix + name
		if !ValidID(name) {
			p.fail(block.DefRange, label, "", "invalid parameter name")
			continue
		}
		if _, dup := params[name]; dup {
			p.fail(block.DefRange, label, "", "duplicate parameter; a parameter may be defined only once per entity")
			continue
		}
		if qs, ok := p.parseQuantity(block, label); ok {
			params[name] = qs
		}
	}
	return params
}

func (p *fileParser) parseQuantity(block *hcl.Block, param string) (QuantitySpec, bool) {
	var qs QuantitySpec
	before := len(p.errs)

	content, diags := block.Body.Content(parameterSchema)
	if p.diags(diags) {
		return qs, false
	}
	missing := block.Body.MissingItemRange()

	valueAttr, hasValue := content.Attributes["value"]
	valuesAttr, hasValues := content.Attributes["values"]
	switch {
	case hasValue && hasValues:
		p.fail(valuesAttr.Range, param, FieldValue, `set either "value" or "values", not both`)
	case !hasValue && !hasValues:
		p.fail(missing, param, FieldValue, "missing value")
	case hasValue:
		v, diags := hclutil.Number(valueAttr.Expr)
		if !p.diags(diags) {
			qs.Value = v
		}
	default:
		series, diags := hclutil.Numbers(valuesAttr.Expr)
		if !p.diags(diags) {
			if len(series) == 0 {
				p.fail(valuesAttr.Range, param, FieldValue, "values must not be empty")
			}
			qs.Series = series
		}
	}

	if attr, ok := content.Attributes["unit"]; ok {
		unit, diags := hclutil.String(attr.Expr)
		if !p.diags(diags) {
			if strings.TrimSpace(unit) == "" {
				p.fail(attr.Range, param, FieldUnit, "unit must not be empty")
			}
			qs.Unit = strings.TrimSpace(unit)
		}
	} else {
		p.fail(missing, param, FieldUnit, "missing unit; every value must state its unit")
	}

	if attr, ok := content.Attributes["sources"]; ok {
		sources, diags := hclutil.Strings(attr.Expr)
		if !p.diags(diags) {
			if len(sources) == 0 {
				p.fail(attr.Range, param, FieldCitation, "at least one citation is required")
			}
			for _, s := range sources {
				if strings.TrimSpace(s) == "" {
					p.fail(attr.Range, param, FieldCitation, "citations must not be blank")
					break
				}
			}
			qs.Sources = sources
		}
	} else {
		p.fail(missing, param, FieldCitation, "missing citation; every value must cite at least one source")
	}

	if attr, ok := content.Attributes["note"]; ok {
		note, diags := hclutil.String(attr.Expr)
		if !p.diags(diags) {
			qs.Note = note
		}
	}

	if attr, ok := content.Attributes["fill"]; ok {
		fill, diags := hclutil.String(attr.Expr)
		if !p.diags(diags) {
			switch {
			case !hasValues:
				p.fail(attr.Range, param, "fill", `"fill" only applies to "values"`)
			case fill != FillRepeat:
				p.fail(attr.Range, param, "fill", "unknown fill rule %q; supported: %q", fill, FillRepeat)
			}
			qs.Fill = fill
		}
	}

	if attr, ok := content.Attributes["annual"]; ok {
		annual, diags := hclutil.YearMap(attr.Expr)
		if !p.diags(diags) {
			if hasValues {
				p.fail(attr.Range, param, "annual", `"annual" overrides apply to a scalar "value" only`)
			}
			qs.Annual = annual
		}
	}

	return qs, len(p.errs) == before
}

func (p *fileParser) parseLinks(dir Direction, blocks hcl.Blocks) []LinkSpec {
	var links []LinkSpec
	seen := make(map[string]struct{}, len(blocks))
	for _, block := range blocks {
		target := block.Labels[0]
		if !ValidID(target) {
			p.fail(block.DefRange, "", "", "invalid %s target %q", dir, target)
			continue
		}
		if _, dup := seen[target]; dup {
			p.fail(block.DefRange, "", "", "duplicate %s %q", dir, target)
			continue
		}
		seen[target] = struct{}{}

		content, diags := block.Body.Content(linkSchema)
		if p.diags(diags) {
			continue
		}
		link := LinkSpec{Target: target}
		if attr, ok := content.Attributes["commodity"]; ok {
			c, diags := hclutil.String(attr.Expr)
			if !p.diags(diags) {
				link.Commodity = c
			}
		}
		params := p.parseParameters(content.Blocks.OfType("parameter"), fmt.Sprintf("%s.%s.", dir, target))
		if len(params) > 0 {
			link.Params = params
		}
		links = append(links, link)
	}
	return links
}
