package app

import (
	"github.com/specialistvlad/restore/internal/registry"
	"github.com/specialistvlad/restore/modules/electricity"
	"github.com/specialistvlad/restore/modules/passenger"
)

// coreModules is the definitive list of all sector modules that are compiled
// into the restore binary.
var coreModules = []registry.Module{
	&electricity.Module{},
	&passenger.Module{},
}
