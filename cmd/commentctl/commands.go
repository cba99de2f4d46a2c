package main

import (
	"errors"
	"fmt"
	"strings"

	"precioverdadero/internal/board"
	"precioverdadero/internal/config"
	"precioverdadero/internal/connectivity"
	"precioverdadero/internal/models"
	"precioverdadero/internal/notify"
	"precioverdadero/internal/submission"
	"precioverdadero/internal/syncer"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errNotSaved = errors.New("comment was not sent or saved")

func newSubmitCmd(a *app) *cobra.Command {
	var name, email, text string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send a comment, or queue it locally when the server is unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient(cmd.OutOrStdout(), board.FormatText, connectivity.Online)
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.flow.Submit(cmd.Context(), name, email, text)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if res.Outcome == submission.OutcomeInvalid || res.Outcome == submission.OutcomeLost {
				return errNotSaved
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Author name")
	cmd.Flags().StringVar(&email, "email", "", "Author email")
	cmd.Flags().StringVar(&text, "text", "", "Comment text")
	return cmd
}

func newPendingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List comments waiting in the local queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient(cmd.OutOrStdout(), board.FormatText, connectivity.Offline)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			items := c.queue.List()
			if len(items) == 0 {
				fmt.Fprintln(out, "No hay comentarios pendientes")
				return nil
			}
			fmt.Fprintln(out, notify.IndicatorText(len(items)))
			for _, p := range items {
				fmt.Fprintf(out, "%s  %s  %s <%s>: %s\n", p.ID, p.Timestamp, p.Name, p.Email, oneLine(p.Text))
			}
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send every queued comment now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient(cmd.OutOrStdout(), board.FormatText, connectivity.Online)
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.coordinator.Sync(cmd.Context(), syncer.TriggerManual)
			out := cmd.OutOrStdout()
			if res.Skipped && res.Reason == syncer.ReasonOffline {
				fmt.Fprintln(out, notify.MsgConnectionLost)
				return nil
			}
			fmt.Fprintf(out, "enviados: %d, fallidos: %d, pendientes: %d\n", res.Synced, res.Failed, res.Remaining)
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued comment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient(cmd.OutOrStdout(), board.FormatText, connectivity.Offline)
			if err != nil {
				return err
			}
			defer c.Close()

			n := c.queue.Len()
			if err := c.queue.Clear(); err != nil {
				return fmt.Errorf("failed to clear queue: %w", err)
			}
			c.surface.PendingChanged(0)
			fmt.Fprintf(cmd.OutOrStdout(), "%d comentario(s) eliminado(s) de la cola\n", n)
			return nil
		},
	}
}

func newCommentsCmd(a *app) *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Fetch and print the comment board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := board.FormatText
			if html {
				format = board.FormatHTML
			}
			c, err := a.openClient(cmd.OutOrStdout(), format, connectivity.Online)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.board.Refresh(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "Render the board as HTML")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected, sync queued comments when the server comes back and follow new comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient(cmd.OutOrStdout(), board.FormatText, connectivity.Offline)
			if err != nil {
				return err
			}
			defer c.Close()

			refresher := syncer.NewEventRefresher(c.board, a.logger)

			var source connectivity.Source = connectivity.StaticSource{State: connectivity.Offline}
			if !a.offline {
				stream := connectivity.NewStreamSource(streamURL(a.cfg.Client.APIURL), a.logger)
				stream.OnMessage = refresher.Handle
				source = stream
			}

			a.logger.WithFields(logrus.Fields{
				"api_url": a.cfg.Client.APIURL,
				"pending": c.queue.Len(),
				"offline": a.offline,
			}).Info("Watching comment board")

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return c.monitor.Watch(gctx, source) })
			g.Go(func() error { return c.coordinator.Run(gctx) })
			g.Go(func() error { return refresher.Run(gctx) })

			if a.fromFile {
				watcher := config.NewConfigWatcher(a.configPath, a.logger)
				watcher.OnConfigChange(func(cfg *models.Config) {
					c.coordinator.UpdateConfig(syncer.FromClientConfig(cfg.Client))
				})
				g.Go(func() error {
					if err := watcher.Start(gctx); err != nil {
						a.logger.WithError(err).Warn("Configuration watcher stopped")
					}
					return nil
				})
			}

			return g.Wait()
		},
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
