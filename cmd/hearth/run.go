package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/hearth/vm"
)

func newRunCommand() *cobra.Command {
	var rounds, garbage int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a ping/pong workload between two units and report heap statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			rt := vm.New(c.Options())
			if !c.Reaper.Disabled {
				rt.Reaper().Start()
			}

			start := time.Now()
			pong := rt.Spawn(pongLoop, vm.Options{})
			home := rt.NewUnit(vm.Options{})
			if err := pingLoop(home, pong, rounds, garbage); err != nil {
				home.Terminate()
				rt.Shutdown()
				return err
			}
			elapsed := time.Since(start)

			stats := home.GCStats()
			pong.Terminate()
			home.Terminate()
			if err := rt.Shutdown(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d round trips in %s\n", rounds, elapsed)
			fmt.Fprintf(out, "collections: %d (skipped %d), grows: %d\n", stats.Collections, stats.Skipped, stats.Grows)
			fmt.Fprintf(out, "words copied: %d, live: %d of %d, last pause: %s\n",
				stats.WordsCopied, stats.LiveWords, stats.CapacityWords, stats.LastPause)
			fmt.Fprintf(out, "finalized foreign blocks: %d\n", stats.Finalized)
			return nil
		},
	}
	cmd.Flags().IntVarP(&rounds, "rounds", "n", 1000, "number of round trips")
	cmd.Flags().IntVar(&garbage, "garbage", 64, "short-lived constructors allocated per round")
	return cmd
}

// pongLoop answers every message with a counter paired with the payload.
func pongLoop(u *vm.Unit) {
	s := u.Stack()
	f := s.Enter(1)
	defer s.Leave(f)
	for n := int64(1); ; n++ {
		msg, err := u.Receive()
		if err != nil {
			return
		}
		s.SetLoc(0, u.NewCon(2, vm.FromInt(n), u.Result()))
		if err := u.Send(msg.Sender, msg.Channel.Reply(), s.Loc(0)); err != nil {
			return
		}
	}
}

// pingLoop keeps a growing history list alive while generating garbage,
// so the collector runs and the history must survive every cycle.
func pingLoop(u *vm.Unit, pong *vm.Unit, rounds, garbage int) error {
	s := u.Stack()
	f := s.Enter(2)
	defer s.Leave(f)

	for i := 0; i < rounds; i++ {
		for j := 0; j < garbage; j++ {
			u.NewCon(1, vm.FromInt(int64(j)), vm.Null)
		}
		s.SetLoc(1, u.NewManagedBlock(16, nil))
		s.SetLoc(1, u.NewCon(3, vm.FromInt(int64(i)), s.Loc(1)))

		ch := u.NewConversation()
		if err := u.Send(pong, ch, s.Loc(1)); err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
		msg, err := u.ReceiveFromTimeout(pong, ch.Reply(), 5*time.Second)
		if err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
		if got := u.Arg(msg.Payload, 0).Int(); got != int64(i+1) {
			return fmt.Errorf("round %d: pong counted %d", i, got)
		}
		// Keep every reply but drop the managed block it carried.
		s.SetLoc(0, u.NewCon(1, u.Arg(u.Arg(msg.Payload, 1), 0), s.Loc(0)))
	}

	n := 0
	for v := s.Loc(0); !v.IsNull(); v = u.Arg(v, 1) {
		n++
	}
	if n != rounds {
		return fmt.Errorf("history holds %d entries, want %d", n, rounds)
	}
	return nil
}
