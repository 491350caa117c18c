// Command usvfsctl is the operator surface for linking, listing, and
// replaying a virtual-mapping file (§6 expansion). Every invocation
// works on a usvfsctx.Context created fresh for that invocation; it
// does not attach to a running engine instance's shared tree, so dump
// and clear only ever see an empty tree. It stands in for the original C++ project's
// usvfs_test/test_file_operations harness binaries, without being a
// port of either.
//
// Grounded on avfs's and the rest of the pack's use of github.com/spf13/cobra
// for CLI structure (moby's docker CLI, rclone's cmd package): one
// root command, one subcommand per verb, flags bound with
// cmd.Flags().StringVar.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/usvfs-go/usvfs/mapfile"
	"github.com/usvfs-go/usvfs/tree"
	"github.com/usvfs-go/usvfs/usvfsctx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		instanceName string
		logLevel     string
	)

	root := &cobra.Command{
		Use:   "usvfsctl",
		Short: "Inspect and drive a usvfs engine instance",
	}

	root.PersistentFlags().StringVar(&instanceName, "instance", "", "instance name set on the local context (no shared-memory attach is made)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logrus level: debug, info, warn, error")

	root.AddCommand(newApplyCmd(&instanceName, &logLevel))
	root.AddCommand(newDumpCmd(&instanceName, &logLevel))
	root.AddCommand(newClearCmd(&instanceName, &logLevel))

	return root
}

func newContext(instanceName, logLevel string) (*usvfsctx.Context, error) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("usvfsctl: %w", err)
	}

	return usvfsctx.New(
		usvfsctx.WithInstanceName(instanceName),
		usvfsctx.WithLogLevel(level),
	), nil
}

func newApplyCmd(instanceName, logLevel *string) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "apply <mapping-file>",
		Short: "Replay a virtual-mapping file's directives against the tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(*instanceName, *logLevel)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("usvfsctl apply: %w", err)
			}
			defer f.Close()

			directives, err := mapfile.Load(f, base)
			if err != nil {
				return fmt.Errorf("usvfsctl apply: %w", err)
			}

			for _, d := range directives {
				if err := applyDirective(ctx, d); err != nil {
					return fmt.Errorf("usvfsctl apply: %s %s: %w", d.Kind, d.Virtual, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d directives\n", len(directives))

			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "physical base directory indented source lines are relative to")

	return cmd
}

func applyDirective(ctx *usvfsctx.Context, d mapfile.Directive) error {
	switch d.Kind {
	case mapfile.MapFile:
		for _, src := range d.Sources {
			if _, err := ctx.LinkFile(src, d.Virtual); err != nil {
				return err
			}
		}
	case mapfile.MapDir, mapfile.MapDirCreate:
		flags := d.LinkFlags() | tree.LinkFlagRecursive

		readDir := func(dir string) ([]tree.DirEntry, error) {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil, err
			}

			out := make([]tree.DirEntry, 0, len(entries))
			for _, e := range entries {
				out = append(out, tree.DirEntry{Name: e.Name(), IsDir: e.IsDir()})
			}

			return out, nil
		}

		for _, src := range d.Sources {
			if _, err := ctx.LinkDirectory(src, d.Virtual, flags, readDir); err != nil {
				return err
			}
		}
	}

	return nil
}

func newDumpCmd(instanceName, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the current Redirection Tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(*instanceName, *logLevel)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), ctx.Tree().Dump())

			return nil
		},
	}
}

func newClearCmd(instanceName, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the virtual mapping tree (ClearVirtualMappings)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(*instanceName, *logLevel)
			if err != nil {
				return err
			}

			ctx.Tree().Clear()
			ctx.InverseTree().Clear()

			return nil
		},
	}
}
