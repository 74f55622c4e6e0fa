package esbuild

import (
	"regexp"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/forgepack/internal/livereload"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

const liveReloadNamespace = "forgepack-livereload"

// liveReloadPlugin serves target.LiveReloadClientEntry from memory.
func liveReloadPlugin() api.Plugin {
	filter := "^" + regexp.QuoteMeta(target.LiveReloadClientEntry) + "$"
	return api.Plugin{
		Name: "forgepack-livereload",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, Namespace: liveReloadNamespace}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: liveReloadNamespace},
				func(api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := livereload.ClientScript
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})
		},
	}
}
