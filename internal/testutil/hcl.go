package testutil

// Entity files of the fuel storage and generator example. The generator
// burns fuel from the storage node; it has no outputs.
const (
	FuelStorageHCL = `
entity "node" "fuel_storage" {
  parameter "capacity" {
    value   = 100
    unit    = "MWh"
    sources = ["Site survey"]
  }
}
`

	GeneratorHCL = `
entity "technology" "generator" {
  costs = ["cost_variable_om"]

  input "fuel_storage" {}

  parameter "output_capacity" {
    value   = 10
    unit    = "MW"
    sources = ["Data sheet, table 1"]
  }

  parameter "cost_variable_om" {
    value   = 5
    unit    = "USD/MWh"
    sources = ["Cost survey"]
  }
}
`
)

// FuelStorageExample returns the example as a file tree under entities/.
func FuelStorageExample() map[string]string {
	return map[string]string{
		"entities/fuel_storage.hcl": FuelStorageHCL,
		"entities/generator.hcl":    GeneratorHCL,
	}
}
