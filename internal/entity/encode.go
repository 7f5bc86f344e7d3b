package entity

import (
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders e in the canonical entity file layout: attributes first,
// then links, then parameters sorted by name. Parse(Encode(e)) yields an
// entity with the same parameters, units, values and citations.
func Encode(e *Entity) []byte {
	f := hclwrite.NewEmptyFile()
	block := f.Body().AppendNewBlock("entity", []string{string(e.kind), e.id})
	body := block.Body()

	if e.description != "" {
		body.SetAttributeValue("description", cty.StringVal(e.description))
	}
	if e.sector != "" {
		body.SetAttributeValue("sector", cty.StringVal(e.sector))
	}
	if e.commodity != "" {
		body.SetAttributeValue("commodity", cty.StringVal(e.commodity))
	}
	if len(e.costs) > 0 {
		body.SetAttributeValue("costs", stringList(e.costs))
	}
	if e.time != nil {
		years := make([]cty.Value, len(e.time.Years))
		for i, y := range e.time.Years {
			years[i] = cty.NumberIntVal(int64(y))
		}
		body.SetAttributeValue("years", cty.TupleVal(years))
		body.SetAttributeValue("days", stringList(e.time.Days))
		body.SetAttributeValue("hours", cty.NumberIntVal(int64(e.time.Hours)))
	}

	for _, l := range e.inputs {
		appendLink(body, l)
	}
	for _, l := range e.outputs {
		appendLink(body, l)
	}

	for _, name := range e.ParamNames() {
		body.AppendNewline()
		appendParameter(body, name, e.params[name])
	}
	return f.Bytes()
}

func appendLink(body *hclwrite.Body, l Link) {
	body.AppendNewline()
	lb := body.AppendNewBlock(string(l.direction), []string{l.target}).Body()
	if l.commodity != "" {
		lb.SetAttributeValue("commodity", cty.StringVal(l.commodity))
	}
	for _, name := range l.ParamNames() {
		appendParameter(lb, name, l.params[name])
	}
}

func appendParameter(body *hclwrite.Body, name string, q Quantity) {
	pb := body.AppendNewBlock("parameter", []string{name}).Body()
	if q.isSeries {
		values := make([]cty.Value, len(q.series))
		for i, v := range q.series {
			values[i] = cty.NumberFloatVal(v)
		}
		pb.SetAttributeValue("values", cty.TupleVal(values))
		if q.fill != "" {
			pb.SetAttributeValue("fill", cty.StringVal(q.fill))
		}
	} else {
		pb.SetAttributeValue("value", cty.NumberFloatVal(q.value))
	}
	if len(q.annual) > 0 {
		years := make([]int, 0, len(q.annual))
		for y := range q.annual {
			years = append(years, y)
		}
		sort.Ints(years)
		attrs := make(map[string]cty.Value, len(years))
		for _, y := range years {
			attrs[strconv.Itoa(y)] = cty.NumberFloatVal(q.annual[y])
		}
		pb.SetAttributeValue("annual", cty.ObjectVal(attrs))
	}
	pb.SetAttributeValue("unit", cty.StringVal(q.unit))
	pb.SetAttributeValue("sources", stringList(q.sources))
	if q.note != "" {
		pb.SetAttributeValue("note", cty.StringVal(q.note))
	}
}

func stringList(items []string) cty.Value {
	vals := make([]cty.Value, len(items))
	for i, s := range items {
		vals[i] = cty.StringVal(s)
	}
	return cty.TupleVal(vals)
}
