package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/character-scraper/internal/tagging"
	anthropicpkg "github.com/sells-group/character-scraper/pkg/anthropic"
)

var (
	tagCharacterID string
	tagBatchSize   int
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Tag stored characters with content and personality tags",
	Long:  "Tags one batch of characters that have a name and description but no tags yet. With --character-id the tags for that character are printed and nothing is stored.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if tagBatchSize > 0 {
			cfg.Tagging.BatchSize = tagBatchSize
		}
		if err := cfg.Validate("tagging"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		tagger := tagging.NewClaudeTagger(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		runner := tagging.NewRunner(st, tagger, cfg.Tagging.MaxConcurrent)

		if tagCharacterID != "" {
			c, tags, err := runner.Preview(ctx, tagCharacterID)
			if err != nil {
				return eris.Wrapf(err, "tag character %s", tagCharacterID)
			}
			fmt.Fprintf(os.Stdout, "%s (%s)\n", c.Name, c.ID)
			return writeOutput(os.Stdout, "yaml", tags)
		}

		res, err := runner.TagPending(ctx, cfg.Tagging.BatchSize)
		if err != nil {
			return eris.Wrap(err, "tag pending characters")
		}
		return writeOutput(os.Stdout, "json", res)
	},
}

func init() {
	tagCmd.Flags().StringVar(&tagCharacterID, "character-id", "", "print tags for one stored character without saving them")
	tagCmd.Flags().IntVar(&tagBatchSize, "batch-size", 0, "characters to tag in this run (default tagging.batch_size)")
	rootCmd.AddCommand(tagCmd)
}
