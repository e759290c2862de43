package vcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// LocalProvider implements DiffProvider against local clones or mirrors using
// go-git. Opened repositories are cached per path; go-git repository handles
// are safe for concurrent reads.
type LocalProvider struct {
	logger *slog.Logger

	mu    sync.Mutex
	repos map[string]*git.Repository
}

func NewLocalProvider(logger *slog.Logger) *LocalProvider {
	return &LocalProvider{logger: logger, repos: make(map[string]*git.Repository)}
}

func (p *LocalProvider) open(repoPath string) (*git.Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if repo, ok := p.repos[repoPath]; ok {
		return repo, nil
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repoPath)
	}
	p.repos[repoPath] = repo
	return repo, nil
}

func (p *LocalProvider) GetBranchHead(_ context.Context, repoPath, branch string) (string, error) {
	repo, err := p.open(repoPath)
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err == nil {
		return ref.Hash().String(), nil
	}

	// Mirrors fetched without local branches track upstream under refs/remotes/origin.
	ref, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}
	return ref.Hash().String(), nil
}

func (p *LocalProvider) ListLiveBranches(_ context.Context, repoPath string) ([]string, error) {
	repo, err := p.open(repoPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var branches []string

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			branches = append(branches, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	// Include remote-tracking branches for bare mirrors.
	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, "refs/remotes/origin/") {
			return nil
		}
		short := strings.TrimPrefix(name, "refs/remotes/origin/")
		if short == "HEAD" {
			return nil
		}
		if _, dup := seen[short]; !dup {
			seen[short] = struct{}{}
			branches = append(branches, short)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}

	return branches, nil
}

func (p *LocalProvider) GetBranchDiff(ctx context.Context, repoPath, fromCommit, toCommit string) ([]FileChange, error) {
	repo, err := p.open(repoPath)
	if err != nil {
		return nil, err
	}

	fromTree, err := p.treeAt(repo, fromCommit)
	if err != nil {
		return nil, err
	}
	toTree, err := p.treeAt(repo, toCommit)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTreeContext(ctx, fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees %s..%s: %w", fromCommit, toCommit, err)
	}

	out := make([]FileChange, 0, len(changes))
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("diff change action: %w", err)
		}
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			out = append(out, FileChange{Path: change.To.Name})
		case merkletrie.Delete:
			out = append(out, FileChange{Path: change.From.Name, Deleted: true})
		}
	}
	return out, nil
}

func (p *LocalProvider) ListFiles(ctx context.Context, repoPath, commit string) ([]string, error) {
	repo, err := p.open(repoPath)
	if err != nil {
		return nil, err
	}

	tree, err := p.treeAt(repo, commit)
	if err != nil {
		return nil, err
	}

	var files []string
	iter := tree.Files()
	err = iter.ForEach(func(f *object.File) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree at %s: %w", commit, err)
	}
	return files, nil
}

func (p *LocalProvider) GetFileContent(_ context.Context, repoPath, commit, path string) ([]byte, error) {
	repo, err := p.open(repoPath)
	if err != nil {
		return nil, err
	}

	tree, err := p.treeAt(repo, commit)
	if err != nil {
		return nil, err
	}

	file, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("file %s at %s: %w", path, commit, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, commit, err)
	}
	return []byte(content), nil
}

func (p *LocalProvider) treeAt(repo *git.Repository, commit string) (*object.Tree, error) {
	obj, err := repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, commit)
		}
		return nil, fmt.Errorf("commit %s: %w", commit, err)
	}
	tree, err := obj.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", commit, err)
	}
	return tree, nil
}
