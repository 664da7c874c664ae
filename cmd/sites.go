package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/character-scraper/internal/model"
	"github.com/sells-group/character-scraper/internal/sites"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage the site catalogue",
}

// -- sites add --

var sitesAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a site",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, siteURL := args[0], args[1]

		if _, err := sites.DefaultRegistry().Resolve(siteURL); err != nil {
			return eris.Wrapf(err, "sites add %s", name)
		}
		disabled, _ := cmd.Flags().GetBool("disabled")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		site, err := st.UpsertSite(ctx, model.Site{Name: name, URL: siteURL, IsEnabled: !disabled})
		if err != nil {
			return eris.Wrap(err, "sites add")
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", site.ID, site.Name, site.URL)
		return nil
	},
}

// -- sites list --

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enabledOnly, _ := cmd.Flags().GetBool("enabled")
		list, err := st.ListSites(ctx, enabledOnly)
		if err != nil {
			return eris.Wrap(err, "sites list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No sites found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tURL\tENABLED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.ID, s.Name, s.URL, s.IsEnabled)
		}
		return w.Flush()
	},
}

func init() {
	sitesAddCmd.Flags().Bool("disabled", false, "store the site disabled so sync skips it")
	sitesListCmd.Flags().Bool("enabled", false, "only list enabled sites")
	sitesCmd.AddCommand(sitesAddCmd, sitesListCmd)
	rootCmd.AddCommand(sitesCmd)
}
