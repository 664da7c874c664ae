package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncSites []string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scrape every enabled site into the store",
	Long:  "Walks the listing of every enabled site in the store, normalizing and upserting creators and characters page by page. Use --site to limit the run to named sites.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := newCrawler(st).ScrapeAll(ctx, syncSites...)
		if err != nil {
			return eris.Wrap(err, "sync")
		}
		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "No enabled sites matched.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SITE\tPAGES\tUPSERTED\tQUEUED\tFAILED\tERROR")
		var failed int
		for _, r := range results {
			errText := ""
			if r.Err != nil {
				failed++
				errText = r.Err.Error()
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
				r.Site.Name, r.Stats.Pages, r.Stats.CharactersUpserted,
				r.Stats.URLsQueued, r.Stats.URLsFailed, errText)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if failed > 0 {
			zap.L().Warn("sync finished with failures", zap.Int("failed", failed), zap.Int("sites", len(results)))
			return eris.Errorf("sync: %d of %d sites failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringSliceVar(&syncSites, "site", nil, "limit the run to these site names (repeatable)")
	rootCmd.AddCommand(syncCmd)
}
