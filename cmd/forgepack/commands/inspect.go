package commands

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/orchestrator"
	"git.home.luguber.info/inful/forgepack/internal/target"
)

// InspectCmd prints derived configurations without compiling.
type InspectCmd struct {
	Mode   string `name:"mode" default:"development" help:"Build mode to derive for (development or production)"`
	Target string `name:"target" help:"Only print this target (main or an entry point name)"`
}

func (i *InspectCmd) Run(g *Global, root *CLI) error {
	mode, err := target.ParseMode(i.Mode)
	if err != nil {
		return ferrors.ValidationError("unknown mode").
			WithCause(err).WithContext("option", "--mode").Build()
	}
	cfg, dir, err := root.loadProject()
	if err != nil {
		return err
	}
	o, err := newOrchestrator(context.Background(), g, cfg, dir, nil)
	if err != nil {
		return err
	}
	defer func() { _ = o.Shutdown(context.Background()) }()

	b, err := o.Builder()
	if err != nil {
		return err
	}
	docs, err := derived(b, mode, i.Target)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(g.out())
	enc.SetIndent(2)
	for _, d := range docs {
		if err := enc.Encode(map[string]any(d)); err != nil {
			return fmt.Errorf("encode %s: %w", d.Name(), err)
		}
	}
	return enc.Close()
}

func derived(b *target.Builder, mode target.Mode, only string) ([]target.Config, error) {
	var out []target.Config
	if only == "" || only == orchestrator.MainChannel {
		mainCfg, err := b.BuildMain(mode)
		if err != nil {
			return nil, err
		}
		out = append(out, mainCfg)
	}
	entries, err := b.EntryPoints()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if only != "" && only != e.Name {
			continue
		}
		cfg, err := b.BuildRenderer(mode, e)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	if len(out) == 0 {
		return nil, ferrors.ValidationError("unknown target").
			WithContext("option", "--target").
			WithContext("target", only).
			Build()
	}
	return out, nil
}
