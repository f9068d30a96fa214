package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/audit"
	"github.com/drfirst/medguide/internal/config"
	"github.com/drfirst/medguide/internal/infrastructure/postgres"
	"github.com/drfirst/medguide/internal/infrastructure/redpanda"
)

func auditCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the conversation audit stream",
	}
	cmd.AddCommand(auditTailCmd(load))
	cmd.AddCommand(auditStatsCmd(load))
	return cmd
}

func auditTailCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print audit events from the Redpanda topic as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			group, _ := cmd.Flags().GetString("group")
			fromStart, _ := cmd.Flags().GetBool("from-start")

			consumerCfg := redpanda.DefaultConsumerConfig()
			consumerCfg.Brokers = cfg.KafkaBrokers
			consumerCfg.Topics = []string{cfg.AuditTopic}
			consumerCfg.GroupID = group
			if fromStart {
				consumerCfg.StartOffset = "earliest"
			}

			out := cmd.OutOrStdout()
			consumer, err := redpanda.NewConsumer(consumerCfg, func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
				var event audit.Event
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					logger.Warn("skipping undecodable audit record",
						zap.Int64("offset", msg.Offset), zap.Error(err))
					return nil
				}
				fmt.Fprintf(out, "%s  %-8.8s  %-20s %s\n",
					event.Timestamp.Format("15:04:05.000"), event.SessionID, event.EventType, event.Data)
				return nil
			}, logger)
			if err != nil {
				return err
			}
			consumer.Start()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan
			return consumer.Stop()
		},
	}
	cmd.Flags().String("group", redpanda.DefaultConsumerConfig().GroupID, "Consumer group")
	cmd.Flags().Bool("from-start", false, "Start from the earliest offset when the group has no commits")
	return cmd
}

func auditStatsCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show outbox backlog and consumer group lag",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			if cfg.AuditSink == config.AuditSinkPostgres {
				pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()
				stats, err := postgres.Stats(ctx, pool)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "outbox pending: %d (retrying %d)\n", stats.Pending, stats.Retrying)
				if stats.OldestPending != nil {
					fmt.Fprintf(out, "oldest pending: %s\n", stats.OldestPending.Format("2006-01-02 15:04:05"))
				}
			}

			group, _ := cmd.Flags().GetString("group")
			admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
			if err != nil {
				return err
			}
			defer admin.Close()
			lag, err := admin.GetConsumerGroupLag(ctx, group)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "GROUP %s\nTOPIC\tPARTITION\tLAG\n", group)
			for topic, partitions := range lag {
				for p, l := range partitions {
					fmt.Fprintf(tw, "%s\t%d\t%d\n", topic, p, l)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("group", redpanda.DefaultConsumerConfig().GroupID, "Consumer group")
	return cmd
}
