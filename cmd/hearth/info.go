package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/hearth/vm"
)

var infoNames = []struct {
	index int
	name  string
}{
	{vm.InfoBackend, "backend"},
	{vm.InfoOS, "os"},
	{vm.InfoArch, "arch"},
	{vm.InfoVersion, "version"},
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the system information registry, configuration and process arguments",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range infoNames {
				v, _ := vm.SystemInfo(e.index)
				fmt.Fprintf(out, "%-8s %s\n", e.name+":", v)
			}

			opts := c.Options()
			if c.Dir != "" {
				fmt.Fprintf(out, "config:  %s\n", c.Dir)
			} else {
				fmt.Fprintf(out, "config:  defaults\n")
			}
			fmt.Fprintf(out, "heap:    %d words, max %d\n", opts.HeapWords, opts.MaxHeapWords)
			fmt.Fprintf(out, "stack:   %d slots\n", opts.StackCeiling)
			fmt.Fprintf(out, "mailbox: %d (%d = unbounded)\n", opts.MailboxCapacity, vm.Unbounded)
			fmt.Fprintf(out, "reaper:  every %s\n", opts.ReapInterval)

			fmt.Fprintf(out, "args:    %d\n", vm.NumArgs())
			for i := 0; i < vm.NumArgs(); i++ {
				fmt.Fprintf(out, "  [%d] %s\n", i, vm.Arg(i))
			}
			return nil
		},
	}
}
