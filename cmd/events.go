/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/expense-tracker/apiserver/config"
	"github.com/expense-tracker/apiserver/internal/mq"
	"github.com/expense-tracker/apiserver/types"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// eventsCmd groups expense event commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect expense events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log expense events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.FromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer queue.Close()

		log.Info().Str("channel", cfg.MQ.ExpenseChannel).Msg("tailing expense events")
		err = queue.Subscribe(ctx, cfg.MQ.ExpenseChannel, logExpenseEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

func logExpenseEvent(ctx context.Context, msg mq.Message) error {
	var event types.ExpenseEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed payloads are acked and dropped.
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("skipping malformed event")
		return nil
	}
	log.Info().
		Str("message_id", msg.ID).
		Str("type", string(event.Type)).
		Int("count", event.Count).
		Strs("ids", event.IDs).
		Time("occurred_at", event.OccurredAt).
		Msg("expense event")
	return nil
}
