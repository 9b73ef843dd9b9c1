package github

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
)

// DefaultExtensions are the file types synced when none are configured.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// FetchedDoc represents a text document fetched from GitHub
type FetchedDoc struct {
	Path    string // Relative path within the base directory
	Content string // Raw file content
	SHA     string // File's Git blob SHA
	URL     string // Browser URL of the file
}

// Repository identifies the documents to sync.
type Repository struct {
	Owner      string
	Repo       string
	BasePath   string
	Ref        string   // branch, tag or commit; default branch if empty
	Extensions []string // DefaultExtensions if empty
}

// Fetcher handles fetching documents from a GitHub repository
type Fetcher struct {
	client *Client
	repo   Repository
}

// NewFetcher creates a new document fetcher
func NewFetcher(client *Client, repo Repository) *Fetcher {
	if len(repo.Extensions) == 0 {
		repo.Extensions = DefaultExtensions
	}
	return &Fetcher{client: client, repo: repo}
}

// Repository returns the fetcher's repository settings.
func (f *Fetcher) Repository() Repository { return f.repo }

func (f *Fetcher) getOptions() *github.RepositoryContentGetOptions {
	if f.repo.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.repo.Ref}
}

// ListDocs recursively lists the document files under the base path, relative
// to it.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listDocsRecursive(ctx, f.repo.BasePath, "")
}

func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.repo.Owner, f.repo.Repo, fullPath, f.getOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		if name == "" {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if f.wanted(name) {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			subDocs, err := f.listDocsRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

func (f *Fetcher) wanted(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range f.repo.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FetchDoc fetches the content of one document by its relative path.
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.repo.BasePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.repo.Owner, f.repo.Repo, fullPath, f.getOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	url := fileContent.GetHTMLURL()
	if url == "" {
		ref := f.repo.Ref
		if ref == "" {
			ref = "main"
		}
		url = fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", f.repo.Owner, f.repo.Repo, ref, fullPath)
	}

	return &FetchedDoc{
		Path:    relativePath,
		Content: content,
		SHA:     fileContent.GetSHA(),
		URL:     url,
	}, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the base path
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.repo.Owner, f.repo.Repo, &github.CommitsListOptions{
		SHA:         f.repo.Ref,
		Path:        f.repo.BasePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.repo.BasePath)
	}

	sha := commits[0].GetSHA()
	if sha == "" {
		return "", fmt.Errorf("commit SHA is empty")
	}
	return sha, nil
}
