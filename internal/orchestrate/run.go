package orchestrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"

	"github.com/archi-tools/inspector/internal/audit"
	"github.com/archi-tools/inspector/internal/metrics"
	"github.com/archi-tools/inspector/internal/xerrors"
	"github.com/archi-tools/inspector/pkg/inspector"
	"github.com/archi-tools/inspector/pkg/xmlmodel"
)

// Run ties together a clone/pull, a model/**/*.xml walk, bounded-concurrency
// inspection, and an optional commit/push, mirroring the original's
// single-pass main() but fanning entities out instead of inspecting them
// serially (§5 "the orchestrator may process entities in parallel").
type Run struct {
	Git         *Git
	Engine      *inspector.Engine
	Metrics     metrics.Recorder
	Audit       audit.Store // nil is treated as audit.NoopStore{}
	Logger      logr.Logger
	Concurrency int64
	NoCommit    bool
}

// Result summarizes what a Run.Execute call did.
type Result struct {
	FilesProcessed int
	ChangedFiles   int
	FailedFiles    int
	Committed      bool
}

// Execute runs one full inspection pass over every *.xml file under
// modelDir, rewriting changed entities in place, then committing and pushing
// through r.Git unless NoCommit is set.
func (r *Run) Execute(ctx context.Context, repoURL, modelDir string) (Result, error) {
	if err := r.Git.EnsureClone(ctx, repoURL); err != nil {
		return Result{}, xerrors.FailedToWithDetails("prepare model repository", "git", RedactURL(repoURL), err)
	}

	files, err := findEntityFiles(modelDir)
	if err != nil {
		return Result{}, err
	}

	changedFiles, failed := r.inspectAll(ctx, files)

	result := Result{FilesProcessed: len(files), ChangedFiles: len(changedFiles), FailedFiles: failed}
	if len(changedFiles) == 0 || r.NoCommit {
		return result, nil
	}

	if err := r.commitAndPush(ctx); err != nil {
		return result, err
	}
	result.Committed = true
	return result, nil
}

func findEntityFiles(modelDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(modelDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".xml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.FailedToWithDetails("walk model directory", "filesystem", modelDir, err)
	}
	return files, nil
}

// inspectAll fans files out across a bounded worker pool. A fatal error
// inspecting one file is logged and counted, never aborting the rest of the
// batch — one bad entity must not keep the others from being inspected.
func (r *Run) inspectAll(ctx context.Context, files []string) (changed []string, failed int) {
	sem := semaphore.NewWeighted(r.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, file := range files {
		file := file
		if err := sem.Acquire(ctx, 1); err != nil {
			// ctx cancelled (process shutting down); stop launching more work.
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			ok, err := r.inspectFile(ctx, file)
			if err != nil {
				r.Logger.Error(err, "inspecting entity file failed, continuing with remaining files", "file", file)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			if ok {
				mu.Lock()
				changed = append(changed, file)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return changed, failed
}

func (r *Run) inspectFile(ctx context.Context, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, xerrors.FailedToWithDetails("open entity file", "filesystem", path, err)
	}
	root, err := xmlmodel.Parse(f)
	closeErr := f.Close()
	if err != nil {
		return false, xerrors.FailedToWithDetails("parse entity file", "xmlmodel", path, err)
	}
	if closeErr != nil {
		return false, xerrors.FailedTo("close entity file", closeErr)
	}

	changed, err := r.Engine.Inspect(ctx, root)
	if err != nil {
		r.Metrics.ResolverError("unknown")
		return false, xerrors.FailedToWithDetails("inspect entity file", "inspector", path, err)
	}
	r.Metrics.EntityProcessed(changed)
	r.recordAudit(ctx, root, path, changed)
	if !changed {
		return false, nil
	}

	out, err := os.Create(path)
	if err != nil {
		return false, xerrors.FailedToWithDetails("open entity file for write", "filesystem", path, err)
	}
	defer out.Close()
	if err := xmlmodel.Write(root, out); err != nil {
		return false, xerrors.FailedToWithDetails("write entity file", "xmlmodel", path, err)
	}
	return true, nil
}

// recordAudit writes a best-effort audit entry for path; a store failure is
// logged and never fails the inspection run (§3 "audit writes are
// best-effort"). The entry's PreviousDepHash and NewDepHash are left empty.
func (r *Run) recordAudit(ctx context.Context, root *xmlmodel.Element, path string, changed bool) {
	store := r.Audit
	if store == nil {
		return
	}
	_, review := xmlmodel.FindProperty(root, inspector.KeyValueRequiresReviewing)
	entry := audit.Entry{
		FilePath:       path,
		Changed:        changed,
		ReviewRequired: review,
		RecordedAt:     time.Now(),
	}
	if err := store.Record(ctx, entry); err != nil {
		r.Logger.Error(err, "failed to record audit entry", "file", path)
	}
}

func (r *Run) commitAndPush(ctx context.Context) error {
	r.Logger.Info("preparing commit")
	if err := r.Git.StageAll(ctx); err != nil {
		return err
	}
	hasChanges, err := r.Git.HasStagedChanges(ctx)
	if err != nil {
		return err
	}
	if !hasChanges {
		return nil
	}
	if err := r.Git.Commit(ctx, "Report detected changes"); err != nil {
		return err
	}
	r.Logger.Info("pushing to origin")
	return r.Git.Push(ctx)
}
