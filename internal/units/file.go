package units

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/restore/internal/hclutil"
)

// unitFileSchema is the top-level structure of a unit definition file.
type unitFileSchema struct {
	Units []*hclUnit `hcl:"unit,block"`
}

// hclUnit is one `unit "<symbol>" { ... }` block.
type hclUnit struct {
	Symbol    string         `hcl:"symbol,label"`
	Dimension string         `hcl:"dimension"`
	Factor    hcl.Expression `hcl:"factor"`
	Sources   []string       `hcl:"sources"`
}

// LoadFile reads custom unit definitions, e.g. exchange rates:
//
//	unit "EUR" {
//	  dimension = "currency"
//	  factor    = 1.08
//	  sources   = ["ECB reference rate, 2024-01-02"]
//	}
//
// factor is the number of base units in one of the defined unit.
func LoadFile(path string) ([]Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse unit file %s: %w", path, diags)
	}
	return decodeUnits(file)
}

// ParseDefinitions is LoadFile for in-memory sources.
func ParseDefinitions(src []byte, filename string) ([]Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse unit file %s: %w", filename, diags)
	}
	return decodeUnits(file)
}

func decodeUnits(file *hcl.File) ([]Definition, error) {
	var root unitFileSchema
	diags := gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, diags
	}

	defs := make([]Definition, 0, len(root.Units))
	seen := make(map[string]struct{}, len(root.Units))
	for _, u := range root.Units {
		if _, dup := seen[u.Symbol]; dup {
			diags = append(diags, hclutil.Errorf(u.Factor.Range(), "Duplicate unit definition", "Unit %q is defined more than once.", u.Symbol))
			continue
		}
		seen[u.Symbol] = struct{}{}

		factor, fDiags := hclutil.Decimal(u.Factor)
		diags = append(diags, fDiags...)
		if fDiags.HasErrors() {
			continue
		}
		defs = append(defs, Definition{
			Symbol:    u.Symbol,
			Dimension: Dimension(u.Dimension),
			Factor:    factor,
			Sources:   u.Sources,
		})
	}
	if diags.HasErrors() {
		return nil, diags
	}
	return defs, nil
}
