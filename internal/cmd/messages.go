package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/config"
	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/realtime"
	"github.com/zfogg/nearby/cli/pkg/service"
)

var (
	conversationsMore    bool
	conversationsOffline bool
	messagesMore         bool
	messagesOffline      bool
)

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"dm"},
	Short:   "Show your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			screen := service.ConversationsScreen(a.deps())
			if err := loadScreen(ctx, screen, conversationsMore, conversationsOffline); err != nil {
				return err
			}
			items := screen.Snapshot()
			headers, rows := formatter.ConversationRows(items)
			return output.PrintList("Conversations", items, headers, rows)
		})
	},
}

var messagesShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			conv := a.conversation(args[0])

			var items []api.Message
			if messagesOffline {
				cached, err := conv.Cached(ctx)
				if err != nil {
					return err
				}
				items = cached
			} else {
				action := paging.Refresh
				if messagesMore {
					if ok, _ := conv.Screen().Restore(ctx); ok {
						action = paging.LoadMore
					}
				}
				if _, err := conv.Load(ctx, action); err != nil {
					return err
				}
				items = conv.Items()
			}
			headers, rows := formatter.MessageRows(items)
			return output.PrintList("Messages", items, headers, rows)
		})
	},
}

var messagesSendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := strings.Join(args[1:], " ")
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			conv := a.conversation(args[0])
			if err := ensureLoaded(ctx, conv.Screen()); err != nil {
				return err
			}
			ran, msg, err := conv.Send(ctx, body)
			if err != nil {
				return err
			}
			if !ran {
				formatter.PrintInfo("A message is already being sent")
				return nil
			}
			conv.Screen().Persist(ctx)
			if output.GetOutputFormat() == output.FormatJSON {
				return output.Print("", msg)
			}
			formatter.PrintSuccess("✓ Sent")
			return nil
		})
	},
}

var messagesWatchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Follow a conversation as it happens",
	Long:  "Show the latest messages and print new ones as they arrive, until interrupted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			conv := a.conversation(args[0])
			if _, err := conv.Load(ctx, paging.Refresh); err != nil {
				return err
			}

			rt := realtime.NewClient(realtime.DefaultConfig(config.GetString("api.ws_url")), a.creds)
			if err := rt.Connect(ctx); err != nil {
				return err
			}

			updates, cancel := conv.Subscribe()
			defer cancel()
			stop := follow(ctx, conv, rt)
			defer func() {
				st := stop()
				logger.Debug("Realtime connection closed",
					"received", st.MessagesReceived,
					"sent", st.MessagesSent,
					"reconnects", st.ReconnectCount,
					"last_error", st.LastError)
			}()

			formatter.PrintInfo("Watching %s, press Ctrl+C to stop", args[0])
			shown := make(map[string]bool)
			for {
				select {
				case <-ctx.Done():
					return nil
				case msgs, ok := <-updates:
					if !ok {
						return nil
					}
					printNew(msgs, shown)
				}
			}
		})
	},
}

// follow applies rt's events to conv in the background. stop closes rt and
// returns once conv has seen its last event.
func follow(ctx context.Context, conv *service.ConversationService, rt *realtime.Client) (stop func() realtime.ConnectionStats) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := conv.Run(runCtx, rt.Events()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Conversation stream stopped", "conversation", conv.ID(), "error", err)
		}
	}()
	return func() realtime.ConnectionStats {
		cancel()
		_ = rt.Close()
		<-done
		return rt.Stats()
	}
}

// printNew prints messages not printed before, oldest first. Placeholders
// wait until the server has confirmed them.
func printNew(msgs []api.Message, shown map[string]bool) {
	var fresh []api.Message
	for _, m := range msgs {
		if shown[m.ID] || optimistic.IsPlaceholder(m.ID) {
			continue
		}
		shown[m.ID] = true
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return
	}
	if output.GetOutputFormat() == output.FormatJSON {
		for i := len(fresh) - 1; i >= 0; i-- {
			if err := output.Print("", fresh[i]); err != nil {
				logger.Warn("Failed to print message", "id", fresh[i].ID, "error", err)
			}
		}
		return
	}
	_, rows := formatter.MessageRows(fresh)
	for _, row := range rows {
		formatter.Bold.Fprint(output.Out, row[1]+": ")
		fmt.Fprintln(output.Out, row[2])
	}
}

// conversation builds the service for id, mirrored to the cache when one
// is open.
func (a *app) conversation(id string) *service.ConversationService {
	if a.cache != nil {
		return service.NewConversationService(a.deps(), id, a.cache)
	}
	return service.NewConversationService(a.deps(), id, nil)
}

func init() {
	addPagingFlags(messagesCmd, &conversationsMore, &conversationsOffline)
	messagesShowCmd.Flags().BoolVar(&messagesMore, "more", false, "Load older messages too")
	messagesShowCmd.Flags().BoolVar(&messagesOffline, "offline", false, "Show cached messages without contacting the server")

	messagesCmd.AddCommand(messagesShowCmd)
	messagesCmd.AddCommand(messagesSendCmd)
	messagesCmd.AddCommand(messagesWatchCmd)
}
