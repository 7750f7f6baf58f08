package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brainbox-app/brainbox/internal/changefeed"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "feed",
	Short:   "Print changes to your data and the feed as they happen",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, sess, err := newEngine()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		url := changefeed.WebSocketURL(cfg.Client.Server)
		logger.Debug("Subscribing", "url", url)

		return changefeed.Subscribe(cmd.Context(), url, sess.Token, func(ev changefeed.Event) {
			eng.HandleChange(ev)
			if ev.Action == changefeed.ActionHello {
				fmt.Fprintln(out, "Watching for changes (Ctrl-C to stop).")
				return
			}
			fmt.Fprintf(out, "%s  %-8s %-14s %s\n", ev.At.Local().Format("15:04:05"), ev.Action, ev.Kind, ev.ID)
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
