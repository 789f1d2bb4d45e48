package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/gounit/core/ast"
	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
)

func (a *app) astCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ast [--format json|cbor|text] <file.gounit|->",
		Short: "Print the parsed specification tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.inputs(args)
			if err != nil {
				return err
			}
			if len(files) != 1 {
				return gerrors.New(gerrors.ErrInvalidArguments, fmt.Sprintf("ast needs exactly one specification, found %d", len(files)))
			}
			cfg, err := a.loadConfig(cmd, files)
			if err != nil {
				return err
			}
			res, err := a.newEngine(cfg).Parse(files[0])
			if err != nil {
				return err
			}

			out, err := encodeTree(res.Root, format)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return gerrors.NewOutputError("<stdout>", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, cbor or text")
	return cmd
}

func encodeTree(root *ast.Root, format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(ast.Canonicalize(root), "", "  ")
		if err != nil {
			return nil, gerrors.Wrap(gerrors.ErrCodeGeneration, "cannot encode tree", err)
		}
		return append(out, '\n'), nil
	case "cbor":
		out, err := ast.Canonicalize(root).MarshalBinary()
		if err != nil {
			return nil, gerrors.Wrap(gerrors.ErrCodeGeneration, "cannot encode tree", err)
		}
		return out, nil
	case "text":
		return []byte(root.String()), nil
	default:
		return nil, gerrors.New(gerrors.ErrInvalidArguments, fmt.Sprintf("unknown format %q (want json, cbor or text)", format))
	}
}
