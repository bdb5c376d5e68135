package remote

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vastctl/vastctl/internal/exec"
	"github.com/vastctl/vastctl/internal/slogger"
)

const (
	// DefaultMaxFileSizeMB is the size cutoff for recursive uploads.
	DefaultMaxFileSizeMB = 40

	// DefaultTransferWorkers bounds concurrent scp processes.
	DefaultTransferWorkers = 4

	transferTimeout = 5 * time.Minute
)

// DefaultExcludePatterns are skipped during recursive uploads unless
// the caller forces inclusion.
var DefaultExcludePatterns = []string{
	"*.tmp",
	"__pycache__",
	".git",
	"node_modules",
	"*.log",
}

// TransferOptions configures recursive uploads.
type TransferOptions struct {
	// ForceInclude bypasses exclude patterns and the size cutoff.
	ForceInclude bool

	// MaxSizeMB overrides DefaultMaxFileSizeMB when positive.
	MaxSizeMB int

	// Workers overrides DefaultTransferWorkers when positive.
	Workers int

	// Exclude replaces DefaultExcludePatterns when non-nil.
	Exclude []string

	// Limit caps the number of files uploaded when positive.
	Limit int
}

// TransferResult summarizes a recursive upload.
type TransferResult struct {
	Copied     []string
	Skipped    map[string]string
	TotalBytes int64
}

func scpArgs(t Target, extra ...string) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "LogLevel=ERROR",
		"-i", t.KeyPath,
		"-P", strconv.Itoa(t.Port),
	}
	return append(args, extra...)
}

// Push copies a single local file to the target, creating the remote
// parent directory first.
func (r *Runner) Push(ctx context.Context, t Target, localPath, remotePath string) error {
	if err := t.validate(); err != nil {
		return err
	}

	if dir := path.Dir(remotePath); dir != "" && dir != "/" && dir != "." {
		if _, err := r.Run(ctx, t, fmt.Sprintf("mkdir -p '%s'", dir)); err != nil {
			return fmt.Errorf("create remote dir: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	res, err := r.exec.Run(ctx, exec.RunOptions{
		Name: "scp",
		Args: scpArgs(t, localPath, fmt.Sprintf("root@%s:%s", t.Host, remotePath)),
	})
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(string(res.Stderr))
		}
		return fmt.Errorf("scp %s: %w (%s)", localPath, err, stderr)
	}
	return nil
}

// Pull copies a file or directory from the target to a local path.
func (r *Runner) Pull(ctx context.Context, t Target, remotePath, localPath string, recursive bool) error {
	if err := t.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	var extra []string
	if recursive {
		extra = append(extra, "-r")
	}
	extra = append(extra, fmt.Sprintf("root@%s:%s", t.Host, remotePath), localPath)

	res, err := r.exec.Run(ctx, exec.RunOptions{
		Name: "scp",
		Args: scpArgs(t, extra...),
	})
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(string(res.Stderr))
		}
		return fmt.Errorf("scp %s: %w (%s)", remotePath, err, stderr)
	}
	return nil
}

// PushDir uploads a directory tree to the target. Files matching exclude
// patterns or exceeding the size cutoff are skipped and reported in the
// result. Uploads run concurrently, bounded by opts.Workers.
func (r *Runner) PushDir(ctx context.Context, t Target, localDir, remoteDir string, opts TransferOptions) (*TransferResult, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	maxSize := int64(DefaultMaxFileSizeMB)
	if opts.MaxSizeMB > 0 {
		maxSize = int64(opts.MaxSizeMB)
	}
	workers := DefaultTransferWorkers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	exclude := DefaultExcludePatterns
	if opts.Exclude != nil {
		exclude = opts.Exclude
	}

	result := &TransferResult{Skipped: map[string]string{}}

	type job struct {
		local  string
		remote string
		size   int64
	}
	var jobs []job

	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(localDir, p)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if !opts.ForceInclude && matchesAny(d.Name(), rel, exclude) {
				result.Skipped[rel] = "matches exclude pattern"
				return filepath.SkipDir
			}
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			result.Skipped[rel] = "not accessible"
			return nil
		}

		if !opts.ForceInclude {
			if matchesAny(d.Name(), rel, exclude) {
				result.Skipped[rel] = "matches exclude pattern"
				return nil
			}
			if sizeMB := info.Size() / (1 << 20); sizeMB > maxSize {
				result.Skipped[rel] = fmt.Sprintf("file too large (%dMB > %dMB)", sizeMB, maxSize)
				return nil
			}
		}

		jobs = append(jobs, job{
			local:  p,
			remote: path.Join(remoteDir, filepath.ToSlash(rel)),
			size:   info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", localDir, err)
	}

	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}

	log := slogger.FromContext(ctx)
	log.Debug("uploading files", "count", len(jobs), "workers", workers, "target", t.Addr())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, j := range jobs {
		g.Go(func() error {
			if err := r.Push(gctx, t, j.local, j.remote); err != nil {
				return err
			}
			mu.Lock()
			result.Copied = append(result.Copied, j.remote)
			result.TotalBytes += j.size
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	sort.Strings(result.Copied)
	return result, nil
}

func matchesAny(name, rel string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
