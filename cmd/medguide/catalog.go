package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drfirst/medguide/internal/catalog"
	"github.com/drfirst/medguide/internal/guide"
	"github.com/drfirst/medguide/internal/medical"
)

func topicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List prompt topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOPIC\tSETS\tPROMPTS")
			for _, t := range catalog.Topics() {
				total := 0
				for _, set := range t.PromptSets {
					total += len(set)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Name, t.NumSets(), total)
			}
			return tw.Flush()
		},
	}
}

func promptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Show the filtered prompt gallery for a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("topic")
			set, _ := cmd.Flags().GetInt("set")
			search, _ := cmd.Flags().GetString("q")
			priority, _ := cmd.Flags().GetString("priority")

			topic, ok := catalog.Topic(name)
			if !ok {
				return fmt.Errorf("%w: %q (known: %s)", guide.ErrUnknownTopic, name,
					strings.Join(catalog.TopicNames(), ", "))
			}
			mode, err := guide.ParsePriorityMode(priority)
			if err != nil {
				return err
			}

			prompts := guide.Filter(topic, set, search, mode)
			fmt.Fprintf(cmd.OutOrStdout(), "%s, set %d of %d, %d prompt(s)\n\n",
				topic.Name, guide.SetIndex(set, topic.NumSets())+1, topic.NumSets(), len(prompts))

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tPRIORITY\tTYPE\tTITLE")
			for i, p := range prompts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, p.Priority, p.Category, p.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("topic", catalog.DefaultTopic().Name, "Topic name")
	cmd.Flags().Int("set", 0, "Prompt set index, wraps around")
	cmd.Flags().String("q", "", "Case-insensitive text filter")
	cmd.Flags().String("priority", "", "recommended, all, critical, high, moderate or low")
	return cmd
}

func askCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the medical backend one question for the demo patient",
		Args:  cobra.MinimumNArgs(1),
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

			client, err := medical.NewClient(medical.Config{
				BaseURL: cfg.MedicalAPIBase,
				Timeout: cfg.BackendTimeout,
			}, nil, logger)
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			resp := medical.NewRecoveringAsker(client, nil, logger).
				Ask(context.Background(), question, catalog.Patient(), []medical.HistoryTurn{})
			if resp.Fallback {
				logger.Warn("backend unavailable, showing fallback answer", zap.String("response_id", resp.ID))
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResponse(cmd, resp)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the raw response")
	return cmd
}

func printResponse(cmd *cobra.Command, resp *medical.Response) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", resp.Content)
	fmt.Fprintf(out, "confidence: %s  evidence: %s\n", resp.ConfidenceLevel, resp.EvidenceQuality)
	if resp.SafetyNotes != "" {
		fmt.Fprintf(out, "safety: %s\n", resp.SafetyNotes)
	}
	for _, s := range resp.Sources {
		fmt.Fprintf(out, "  source: %s %s\n", s.Title, s.URL)
	}
	for _, f := range resp.FollowUpPrompts {
		fmt.Fprintf(out, "  next (%s): %s\n", f.Category, f.Prompt)
	}
	if resp.Fallback {
		fmt.Fprintln(os.Stderr, "note: the medical backend could not be reached")
	}
}
