package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/hearth/vm"
	"github.com/chazu/hearth/vm/wire"
)

func newEncodeCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "encode [text]",
		Short: "Seal a sample value graph as a CBOR envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			text := "hello"
			if len(args) == 1 {
				text = args[0]
			}

			rt := vm.New(c.Options())
			u := rt.NewUnit(vm.Options{})
			defer rt.Shutdown()
			defer u.Terminate()

			s := u.Stack()
			f := s.Enter(1)
			defer s.Leave(f)
			buildSample(u, text)

			data, err := wire.Seal(u, u.NewConversation(), s.Loc(0))
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, data, 0644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the raw envelope to a file instead of printing hex")
	return cmd
}

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <file>",
		Short: "Open a CBOR envelope and print the value it carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			env, err := wire.Open(data)
			if err != nil {
				return err
			}

			rt := vm.New(c.Options())
			u := rt.NewUnit(vm.Options{})
			defer rt.Shutdown()
			defer u.Terminate()

			v, err := env.Deliver(u)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "origin %s, unit %d, channel %d\n", env.Origin, env.Sender, env.Channel)
			fmt.Fprintln(out, describe(u, v))
			return nil
		},
	}
}

// buildSample leaves Con 1 [text, Con 2 [length, 2.5], [text[1:], Unit]]
// in slot 0 of the current frame.
func buildSample(u *vm.Unit, text string) {
	s := u.Stack()
	s.SetLoc(0, u.NewString(text))
	arr := u.NewArray(2)
	u.ArraySet(arr, 1, vm.UnitValue)
	s.SetLoc(0, u.NewCon(1, s.Loc(0), arr))

	str := u.Arg(s.Loc(0), 0)
	tail := u.Substring(str, min(1, len(text)), max(0, len(text)-1))
	u.ArraySet(u.Arg(s.Loc(0), 1), 0, tail)

	fl := u.NewFloat(2.5)
	pair := u.NewCon(2, vm.FromInt(int64(len(text))), fl)
	s.SetLoc(0, u.NewCon(1, u.Arg(s.Loc(0), 0), pair, u.Arg(s.Loc(0), 1)))
}

// describe renders a value graph for display. Shared nodes are printed
// each time they are reached; cycles print as "...".
func describe(u *vm.Unit, v vm.Value) string {
	var b strings.Builder
	var walk func(v vm.Value, depth int)
	walk = func(v vm.Value, depth int) {
		if depth > 32 {
			b.WriteString("...")
			return
		}
		switch k := u.Kind(v); k {
		case vm.KindNull:
			b.WriteString("null")
		case vm.KindInt:
			fmt.Fprintf(&b, "%d", v.Int())
		case vm.KindUnit:
			b.WriteString("()")
		case vm.KindCon:
			fmt.Fprintf(&b, "Con%d", u.Tag(v))
			if u.Arity(v) > 0 {
				b.WriteString("(")
				for i := 0; i < u.Arity(v); i++ {
					if i > 0 {
						b.WriteString(", ")
					}
					walk(u.Arg(v, i), depth+1)
				}
				b.WriteString(")")
			}
		case vm.KindArray:
			b.WriteString("[")
			for i := 0; i < u.ArrayLen(v); i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				walk(u.ArrayGet(v, i), depth+1)
			}
			b.WriteString("]")
		case vm.KindRef:
			b.WriteString("ref ")
			walk(u.ReadRef(v), depth+1)
		case vm.KindString, vm.KindSlice:
			fmt.Fprintf(&b, "%q", u.GoString(v))
		case vm.KindFloat:
			fmt.Fprintf(&b, "%g", u.FloatOf(v))
		case vm.KindBig:
			b.WriteString(u.IntegerOf(v).String())
		case vm.KindBits8, vm.KindBits16, vm.KindBits32, vm.KindBits64:
			fmt.Fprintf(&b, "%s:%d", k, u.BitsOf(v))
		default:
			fmt.Fprintf(&b, "<%s>", k)
		}
	}
	walk(v, 0)
	return b.String()
}
