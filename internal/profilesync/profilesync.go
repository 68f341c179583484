// Package profilesync implements the "--sync-profile" convenience verb:
// cloning or pulling a git repository that holds a shared cx.top, and
// copying its cx.top into the current build root. This is not a
// dependency graph — it only refreshes the toolchain profile, never
// per-unit sources or libraries.
package profilesync

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/msg"
)

const branch = "main"

// cacheDir returns where a given profile repo URL is checked out,
// keyed by its hash so distinct URLs don't collide.
func cacheDir(url string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "cx", "profiles", fmt.Sprintf("%08x", container.HashBytes([]byte(url))))
}

// Sync clones (or pulls, if already cloned) the profile repo at url and
// copies its cx.top on top of rootDir's.
func Sync(url, rootDir string) error {
	dir := cacheDir(url)
	if err := os.MkdirAll(filepath.Dir(dir), 0777); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); errors.Is(err, os.ErrNotExist) {
		msg.Info("cloning profile repo %s", url)
		_, err := git.PlainClone(dir, &git.CloneOptions{
			URL:           url,
			ReferenceName: plumbing.NewBranchReferenceName(branch),
			SingleBranch:  true,
			Depth:         1,
			Progress:      &msg.IndentWriter{Indent: "  ", W: os.Stderr},
		})
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return err
		}
		w, err := repo.Worktree()
		if err != nil {
			return err
		}
		msg.Info("pulling profile repo %s", url)
		err = w.Pull(&git.PullOptions{
			RemoteName:    "origin",
			ReferenceName: plumbing.NewBranchReferenceName(branch),
			SingleBranch:  true,
			Depth:         1,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return err
		}
	}

	return copyFile(filepath.Join(dir, "cx.top"), filepath.Join(rootDir, "cx.top"))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
