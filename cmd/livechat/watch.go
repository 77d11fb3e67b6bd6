package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietstream/livechat/internal/app"
	"github.com/vietstream/livechat/internal/chat"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join the stream chat",
		Long: `Connect to the broker and follow the chat. Typed lines are posted
as comments. Commands: /name <name> sets the display name, /quit exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if displayName != "" {
				application.Surface().SetDisplayName(displayName)
			}
			application.OnEvent = func(ev chat.Event) {
				render(application, ev)
			}

			go readInput(ctx, application, stop)

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "display name (overrides the persisted one)")
	return cmd
}

func render(application *app.App, ev chat.Event) {
	switch ev.Kind {
	case chat.EventComment:
		printComment(ev.Comment)
	case chat.EventHistory:
		fmt.Printf("--- %d earlier comment(s) ---\n", len(ev.Comments))
		for _, c := range ev.Comments {
			printComment(c)
		}
	case chat.EventViewerCount:
		fmt.Printf("*** %d watching\n", application.Presence().Displayed())
	case chat.EventCommentDeleted:
		fmt.Printf("*** comment by %s removed\n", ev.Comment.DisplayName)
	}
}

func printComment(c chat.Comment) {
	tag := ""
	if c.IsAdmin {
		tag = " [mod]"
	}
	if c.IPAddress != "" {
		tag += " (" + c.IPAddress + ")"
	}
	fmt.Printf("[%s] %s%s: %s\n", c.CreatedAt, c.DisplayName, tag, c.Content)
}

// readInput turns stdin lines into chat actions, serialized onto the
// app's event loop.
func readInput(ctx context.Context, application *app.App, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			stop()
			return
		case strings.HasPrefix(line, "/name "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/name "))
			_ = application.Do(ctx, func() {
				application.Surface().SetDisplayName(name)
			})
		default:
			err := application.Do(ctx, func() {
				s := application.Surface()
				s.SetContent(line)
				if err := s.Submit(ctx); err != nil {
					fmt.Printf("!!! %s\n", err)
				}
			})
			if err != nil {
				return
			}
		}
	}
}
