package integration_tests

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/restore/internal/app"
	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/registry"
	"github.com/specialistvlad/restore/internal/testutil"
	"github.com/specialistvlad/restore/internal/validate"
	"github.com/specialistvlad/restore/modules/electricity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipeline_MissingUnit checks that a parameter without a unit stops the
// run at load time and no artifact is written.
func TestPipeline_MissingUnit(t *testing.T) {
	files := map[string]string{
		"entities/fuel_storage.hcl": `
entity "node" "fuel_storage" {
  parameter "capacity" {
    value   = 100
    sources = ["Site survey"]
  }
}
`,
	}

	result := testutil.RunPipelineTest(t, files, testutil.Options{})

	var parseErr *entity.ParseError
	require.True(t, errors.As(result.Err, &parseErr), "expected ParseError, got %v", result.Err)
	assert.Equal(t, "fuel_storage", parseErr.Entity)
	assert.Equal(t, "capacity", parseErr.Parameter)
	assert.Equal(t, entity.FieldUnit, parseErr.Field)
	assert.NoDirExists(t, result.OutDir)
}

// TestPipeline_ValidationAggregates checks that every violation of a run is
// reported together.
func TestPipeline_ValidationAggregates(t *testing.T) {
	files := map[string]string{
		"entities/fuel_storage.hcl": `
entity "node" "fuel_storage" {
  parameter "capacity" {
    value   = 100
    unit    = "furlong"
    sources = ["Site survey"]
  }
}
`,
		"entities/generator.hcl": `
entity "technology" "generator" {
  input "coal_yard" {}
}
`,
	}

	result := testutil.RunPipelineTest(t, files, testutil.Options{})

	var valErr *validate.ValidationError
	require.True(t, errors.As(result.Err, &valErr), "expected ValidationError, got %v", result.Err)
	assert.True(t, valErr.Has(validate.RuleUnknownUnit))
	assert.True(t, valErr.Has(validate.RuleUnresolvedRef))
	assert.Len(t, valErr.Violations, 2)
	assert.Nil(t, result.App.Last())
}

type rogueModule struct{}

func (rogueModule) Register(r *registry.Registry) {
	r.RegisterSector(registry.Sector{
		Name: "rogue",
		Extend: func(_ context.Context, g *graph.Graph, _ *config.Configuration) (*graph.Graph, error) {
			return g, g.AddNode(graph.Node{ID: "node.fuel_storage", Kind: graph.KindLocation, Origin: "rogue"})
		},
	})
}

// TestPipeline_ModuleConflict checks that a sector module redefining a core
// element fails the run with the module and element named.
func TestPipeline_ModuleConflict(t *testing.T) {
	result := testutil.RunPipelineTest(t, testutil.FuelStorageExample(), testutil.Options{
		Modules: []registry.Module{&electricity.Module{}, rogueModule{}},
	})

	var conflict *registry.ModuleConflictError
	require.True(t, errors.As(result.Err, &conflict), "expected ModuleConflictError, got %v", result.Err)
	assert.Equal(t, "rogue", conflict.Module)
	assert.Equal(t, "node.fuel_storage", conflict.Element)
}

func TestPipeline_StartupErrors(t *testing.T) {
	testCases := []struct {
		name    string
		opts    testutil.Options
		wantErr string
	}{
		{
			name:    "unknown solver",
			opts:    testutil.Options{Config: app.Config{Solver: "glpk"}},
			wantErr: `unknown solver backend "glpk"`,
		},
		{
			name:    "duplicate sector module",
			opts:    testutil.Options{Modules: []registry.Module{&electricity.Module{}, &electricity.Module{}}},
			wantErr: "application startup panicked",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := testutil.RunPipelineTest(t, testutil.FuelStorageExample(), tc.opts)
			assert.ErrorContains(t, result.Err, tc.wantErr)
			assert.Nil(t, result.Result)
		})
	}
}
