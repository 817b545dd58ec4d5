// Command gany inspects and displays gany demo scenes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/soypat/gany/ganyaux"
	"github.com/soypat/gany/gleval"
	"github.com/soypat/gany/glrender"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

type flags struct {
	verbose bool
	config  string
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "gany",
		Short:         "Data driven shader effects and water caustics demos",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log debug messages")
	root.PersistentFlags().StringVarP(&f.config, "config", "c", "", "viewer configuration file (.yaml, .yml or .toml)")
	root.AddCommand(newShaderCmd(&f), newViewCmd(&f), newEvalCmd(&f))
	return root
}

func (f *flags) logger() *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (f *flags) viewerConfig() (ganyaux.ViewerConfig, error) {
	if f.config == "" {
		var cfg ganyaux.ViewerConfig
		cfg.SetDefaults()
		return cfg, nil
	}
	return ganyaux.LoadViewerConfig(f.config)
}

func newShaderCmd(f *flags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "shader",
		Short: "Write the generated GLSL of the demo scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.viewerConfig()
			if err != nil {
				return err
			}
			demo, err := ganyaux.NewDemo(cfg, glrender.NewTargetPool(), f.logger())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if output != "" {
				fp, err := os.Create(output)
				if err != nil {
					return err
				}
				defer fp.Close()
				w = fp
			}
			return ganyaux.WriteShaders(w, demo.Scene)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, standard output if empty")
	return cmd
}

func newViewCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Open the demo scene in a window. The configuration file is reloaded on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := f.logger()
			cfg, err := f.viewerConfig()
			if err != nil {
				return err
			}
			demo, err := ganyaux.NewDemo(cfg, nil, log)
			if err != nil {
				return err
			}
			var beforeFrame func() error
			if f.config != "" {
				watcher, err := ganyaux.NewConfigWatcher(f.config, log)
				if err != nil {
					return err
				}
				defer watcher.Close()
				beforeFrame = func() error {
					newCfg, ok := watcher.Poll()
					if !ok {
						return nil
					}
					if err := demo.Apply(newCfg); err != nil {
						log.Warn("applying config", slog.Any("err", err))
					}
					return nil
				}
			}
			err = ganyaux.UI(demo.Scene, ganyaux.UIConfig{
				Width:       cfg.Width,
				Height:      cfg.Height,
				Title:       fmt.Sprintf("%s - gany", cfg.Title),
				Context:     cmd.Context(),
				Logger:      log,
				BeforeFrame: beforeFrame,
			})
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func newEvalCmd(f *flags) *cobra.Command {
	var gpu bool
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the demo terrain vertex transform and print its bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := f.logger()
			cfg, err := f.viewerConfig()
			if err != nil {
				return err
			}
			demo, err := ganyaux.NewDemo(cfg, glrender.NewTargetPool(), log)
			if err != nil {
				return err
			}
			if gpu {
				terminate, err := gleval.Init1x1GLFW()
				if err != nil {
					return err
				}
				defer terminate()
			}
			bb, err := ganyaux.TransformBounds(demo.TerrainWarp, gpu)
			if err != nil {
				return err
			}
			log.Debug("evaluated terrain", slog.Bool("gpu", gpu), slog.Int("vertices", demo.Terrain.Geometry().NumVertices()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "min %g %g %g\nmax %g %g %g\n",
				bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
			return err
		},
	}
	cmd.Flags().BoolVar(&gpu, "gpu", false, "evaluate with a compute shader")
	return cmd
}
