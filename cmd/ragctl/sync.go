package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ghclient "github.com/bull/lexrag/internal/github"
	"github.com/bull/lexrag/internal/indexer"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/markdown"
)

var (
	syncOwner string
	syncRepo  string
	syncPath  string
	syncRef   string
	syncSplit bool
	syncMode  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index documentation from a GitHub repository",
	Long: `Fetches every .md, .markdown and .txt file under a repository path and indexes it.

This command:
1. Resolves the latest commit touching the path
2. Fetches each document and converts markdown to plain text
3. Optionally splits markdown into one document per H1/H2 section
4. Rebuilds the index (replace by default, or append)

Repository flags override the github section of the config file.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncOwner, "owner", "", "repository owner")
	syncCmd.Flags().StringVar(&syncRepo, "repo", "", "repository name")
	syncCmd.Flags().StringVar(&syncPath, "path", "", "base path inside the repository")
	syncCmd.Flags().StringVar(&syncRef, "ref", "", "branch, tag or commit (default: repository default branch)")
	syncCmd.Flags().BoolVar(&syncSplit, "split", false, "index markdown as one document per H1/H2 section")
	syncCmd.Flags().StringVar(&syncMode, "mode", string(ingest.ModeReplace), "replace or append")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	gh := a.Config.GitHub
	repo := ghclient.Repository{
		Owner:    firstNonEmpty(syncOwner, gh.Owner),
		Repo:     firstNonEmpty(syncRepo, gh.Repo),
		BasePath: firstNonEmpty(syncPath, gh.Path),
		Ref:      firstNonEmpty(syncRef, gh.Ref),
	}
	if repo.Owner == "" || repo.Repo == "" {
		return errors.New("repository required: set --owner and --repo or github.owner/github.repo in the config")
	}
	mode, err := ingest.ParseMode(syncMode)
	if err != nil {
		return err
	}

	client, err := ghclient.NewClient(gh.Token)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	fmt.Fprintf(out, "Syncing %s/%s/%s (%s)...\n", repo.Owner, repo.Repo, repo.BasePath, mode)
	pipeline := indexer.NewPipeline(
		ghclient.NewFetcher(client, repo),
		markdown.NewConverter(),
		a.Service,
		syncSplit || gh.SplitSections,
		a.Logger,
	)

	result, err := pipeline.IndexAll(ctx, mode)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sync complete!")
	fmt.Fprintf(out, "  Files: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Fprintf(out, "  Documents: %d\n", result.Documents)
	fmt.Fprintf(out, "  Index total: %d (version %d)\n", result.Ingest.Total, result.Ingest.Version)
	fmt.Fprintf(out, "  Commit: %s\n", result.CommitSHA)

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Fprintf(out, "\nTotal time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
