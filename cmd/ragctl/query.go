package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var topK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank indexed documents against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Service.Search(cmd.Context(), strings.Join(args, " "), topK)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No matching documents found.")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "%d. [%.4f] %s (%s)\n", i+1, r.Score, r.Title, r.ID)
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.Service.Ask(cmd.Context(), strings.Join(args, " "), topK)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ans.Answer)
		if len(ans.Retrieved) > 0 {
			fmt.Fprintf(out, "\nSources (%s):\n", ans.Mode)
			for _, d := range ans.Retrieved {
				fmt.Fprintf(out, "  - %s (%s)\n", d.Title, d.ID)
			}
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index version and counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Service.Status(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Index: %s\n", st.IndexPath)
		fmt.Fprintf(out, "Remote: %s\n", st.Remote)
		if !st.Exists {
			fmt.Fprintln(out, "No index yet. Run 'ragctl ingest' or 'ragctl sync'.")
			return nil
		}
		fmt.Fprintf(out, "Version: %d\n", st.Version)
		if st.Remote != "none" && st.RemoteVersion != st.Version {
			fmt.Fprintf(out, "Remote version: %d (mirror behind, uploaded on next save)\n", st.RemoteVersion)
		}
		fmt.Fprintf(out, "Updated: %s\n", st.UpdatedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Documents: %d\n", st.Documents)
		fmt.Fprintf(out, "Terms: %d\n", st.Terms)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, askCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "number of documents to retrieve (default from config)")
	}
}
