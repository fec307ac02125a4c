package app

import (
	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/hcl"
	"github.com/vk/stacgridgo/internal/jsonconfig"
	"github.com/vk/stacgridgo/internal/registry"
	"github.com/vk/stacgridgo/internal/staccfg"
	"github.com/vk/stacgridgo/modules/httptiff"
	"github.com/vk/stacgridgo/modules/localtiff"
)

// coreModules is the list of raster drivers compiled into the binary.
var coreModules = []registry.Module{
	&localtiff.Module{},
	&httptiff.Module{},
}

// DefaultConfigLoader routes configuration paths by extension: HCL files
// and directories, JSON load configurations and YAML collection files.
func DefaultConfigLoader() config.Loader {
	h := hcl.NewLoader()
	y := staccfg.NewLoader()
	return config.Dispatch{
		".hcl":        h,
		config.DirKey: h,
		".json":       jsonconfig.NewLoader(),
		".yaml":       y,
		".yml":        y,
	}
}
