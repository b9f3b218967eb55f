package priming

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/swarmd/internal/ignore"
	"github.com/fyrsmithlabs/swarmd/internal/store"
)

// DirScanner lists candidate files from task workspaces laid out as one
// directory per task id under a common root, honoring .gitignore and
// .swarmdignore patterns.
type DirScanner struct {
	root   string
	parser *ignore.Parser
}

// NewDirScanner creates a scanner over the given workspace root.
func NewDirScanner(root string) *DirScanner {
	return &DirScanner{
		root: root,
		parser: ignore.NewParser(
			[]string{".gitignore", ".swarmdignore"},
			ignore.DefaultExcludePatterns,
		),
	}
}

// ListWorkspaceFiles walks the task's workspace and returns every file not
// excluded by ignore patterns. The .git directory is always skipped.
func (d *DirScanner) ListWorkspaceFiles(ctx context.Context, taskID string) ([]WorkspaceFile, error) {
	dir := filepath.Join(d.root, taskID)
	patterns, err := d.parser.ParseProject(dir)
	if err != nil {
		return nil, fmt.Errorf("priming: parse ignore files for task %s: %w", taskID, err)
	}

	var files []WorkspaceFile
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return nil
		}
		if entry.IsDir() {
			if entry.Name() == ".git" || ignore.Matches(patterns, rel) {
				return fs.SkipDir
			}
			return nil
		}
		if ignore.Matches(patterns, rel) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		files = append(files, WorkspaceFile{Path: rel, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("priming: scan workspace for task %s: %w", taskID, err)
	}
	return files, nil
}

// snippetMaxLines bounds how much of a contract body one snippet carries.
const snippetMaxLines = 40

// StoreSnippets serves contract excerpts straight from the knowledge store.
type StoreSnippets struct {
	store store.Store
}

// NewStoreSnippets creates a snippet source over the given store.
func NewStoreSnippets(s store.Store) *StoreSnippets {
	return &StoreSnippets{store: s}
}

// ListContractSnippets returns the head of every contract specification in
// the project, capped at snippetMaxLines lines each.
func (s *StoreSnippets) ListContractSnippets(ctx context.Context, projectID string) ([]ContractSnippet, error) {
	contracts, err := s.store.ListContracts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	snippets := make([]ContractSnippet, 0, len(contracts))
	for _, c := range contracts {
		body := strings.TrimSpace(c.Specification)
		if body == "" {
			continue
		}
		lines := strings.Split(body, "\n")
		if len(lines) > snippetMaxLines {
			lines = lines[:snippetMaxLines]
		}
		snippets = append(snippets, ContractSnippet{
			File:        c.Name,
			Description: c.Description,
			Content:     strings.Join(lines, "\n"),
		})
	}
	return snippets, nil
}
