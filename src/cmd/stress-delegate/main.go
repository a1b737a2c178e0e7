package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-translate/src/config"
	"screen-translate/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	lang     string
	deadline time.Duration
}

// counts tallies client outcomes. A resident accepts at most one delegated
// capture at a time, so under load most clients should land in busy.
type counts struct {
	ok, busy, refused, err, absent int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-delegate",
		Short:         "Stress test delegated captures against a running resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runWithOptions(*opts, func() singleinstance.Client {
				return singleinstance.NewClient(cfg.ResidentPorts)
			}, os.Stdout)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: translation to stdout or to the resident's clipboard")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "target language sent with each request")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, newClient func() singleinstance.Client, out io.Writer) error {
	if opts.mode != "std" && opts.mode != "clip" {
		return fmt.Errorf("unknown mode %q (want std or clip)", opts.mode)
	}
	req := singleinstance.Request{OutputToStdout: opts.mode == "std", TargetLanguage: opts.lang}

	var c counts
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := newClient().TryCapture(ctx, req)
			c.record(delegated, err)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Fprintf(out, "launched=%d ok=%d busy=%d refused=%d err=%d no-resident=%d elapsed=%s\n",
		opts.n, c.ok, c.busy, c.refused, c.err, c.absent, elapsed)
	return nil
}

func (c *counts) record(delegated bool, err error) {
	switch {
	case err != nil && !delegated:
		atomic.AddInt32(&c.err, 1)
	case errors.Is(err, singleinstance.ErrBusy):
		atomic.AddInt32(&c.busy, 1)
	case err != nil:
		// Cancelled or superseded selections and failed sessions.
		atomic.AddInt32(&c.refused, 1)
	case delegated:
		atomic.AddInt32(&c.ok, 1)
	default:
		atomic.AddInt32(&c.absent, 1)
	}
}
