package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsariola/tractor"
	"github.com/vsariola/tractor/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Reload a session document whenever it changes",
	Long:  `Load a session document and reload it every time it is saved, printing the session summary after each reload. Invalid values fall back to defaults and are logged.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, doc, err := loadSession(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := renderInfo(out, defaultInfoFormat, describeSession(doc.Path, s)); err != nil {
			return err
		}
		w, err := watch.New(doc.Path, watchDebounce, log)
		if err != nil {
			return err
		}
		defer w.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err = w.Run(ctx, func() error {
			if err := doc.Load(s); err != nil {
				return err
			}
			tractor.Stabilize(cfg.Stabilize)
			log.Info("session reloaded", zap.String("path", doc.Path), zap.Int("tracks", s.NumTracks()))
			fmt.Fprintln(out)
			return renderInfo(out, defaultInfoFormat, describeSession(doc.Path, s))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 100*time.Millisecond, "wait this long for writes to settle before reloading")
}
