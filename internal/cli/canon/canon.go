// Package canon implements the canon command, which prints the canonical
// text templates are matched against.
package canon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/irscan/internal/cli/helpers"
	"github.com/coral-mesh/irscan/internal/errors"
	"github.com/coral-mesh/irscan/internal/image"
	"github.com/coral-mesh/irscan/internal/ir"
	"github.com/coral-mesh/irscan/internal/resolver"
)

// NewCanonCmd creates the canon command.
func NewCanonCmd(global *helpers.GlobalOptions) *cobra.Command {
	var listFunctions bool

	cmd := &cobra.Command{
		Use:   "canon <binary> <marker|0xaddr>",
		Short: "Print the canonical text of a function",
		Long: `Print the canonical text of the function that a marker string or an
address falls in, one instruction per line, followed by its fingerprint.

This is the text templates are matched against. Copy a line, replace the
varying parts with '..' and the address to capture with '??', and you have a
template.`,
		Example: `  irscan canon bin/libclient.so CheckUpdatingSteamResources
  irscan canon bin/libclient.so 0x4f2a0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := helpers.NewLogger(cfg, "canon")

			img, err := image.Open(args[0], helpers.ImageConfig(cfg, logger))
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, img, "failed to close image")

			fn, err := lookup(img, args[1], resolver.New(img, helpers.ResolverOptions(cfg), logger))
			if err != nil {
				return err
			}

			instrs, err := img.Instructions(fn)
			if err != nil {
				return err
			}
			text := ir.CanonicalInstructions(instrs)

			out := cmd.OutOrStdout()
			if listFunctions {
				for _, f := range img.Functions() {
					_, _ = fmt.Fprintf(out, "# %s [0x%x, 0x%x)\n", f, f.Start, f.End)
				}
			}
			_, _ = fmt.Fprintf(out, "# %s, %d instructions\n", fn, len(instrs))
			_, _ = fmt.Fprintln(out, text)
			_, _ = fmt.Fprintf(out, "# fingerprint %016x\n", ir.Fingerprint(text))
			return nil
		},
	}

	cmd.Flags().BoolVar(&listFunctions, "functions", false, "Also list every discovered function")

	return cmd
}

// lookup resolves arg as an address when it has a 0x prefix, otherwise as
// a marker string.
func lookup(img image.Image, arg string, res *resolver.Resolver) (*ir.Function, error) {
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		addr, err := strconv.ParseUint(arg[2:], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", arg, err)
		}
		fn, ok := img.FunctionContaining(addr)
		if !ok {
			return nil, fmt.Errorf("0x%x is outside every function", addr)
		}
		return fn, nil
	}

	loc, err := res.Resolve(arg)
	if err != nil {
		return nil, err
	}
	return loc.Function, nil
}
