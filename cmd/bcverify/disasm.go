package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/pkg/bytecode"
	"github.com/chazu/bcverify/server"
)

func newDisasmCommand(g *globalFlags) *cobra.Command {
	var methods []string
	cmd := &cobra.Command{
		Use:   "disasm program.yaml",
		Short: "Print the assembled bytecode of a program's methods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.load(); err != nil {
				return err
			}
			reg := classpath.NewRegistry()
			if _, err := reg.LoadFile(args[0]); err != nil {
				return err
			}
			selected, err := server.SelectMethods(reg, methods)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range selected {
				fmt.Fprintf(out, "%s  (%d vregs, %d bytes)\n", m.FullName(), m.NumVregs, len(m.Code))
				fmt.Fprint(out, bytecode.DisassembleWithNames(m.Code, m.Pool.NameOf))
				for _, tb := range m.TryBlocks {
					fmt.Fprintf(out, "  try %04X-%04X\n", tb.Start, tb.End())
					for _, c := range tb.Catches {
						fmt.Fprintf(out, "    catch %s -> %04X (%d bytes)\n", catchName(m, c), c.HandlerPC, c.Size)
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&methods, "method", "m", nil, "disassemble only this method (Class.name); repeatable")
	return cmd
}

func catchName(m *classpath.Method, c classpath.CatchBlock) string {
	if c.CatchAll {
		return "*"
	}
	return m.Pool.NameOf(bytecode.IDClass, c.TypeID)
}
