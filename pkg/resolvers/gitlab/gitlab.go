// Package gitlab implements the gitlab:// resolver: it resolves
// references against the GitLab REST file-content API and, for pinned
// references, diffs two commits through the compare API, handing the raw
// unified diff to pkg/diffinterp for classification.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/archi-tools/inspector/internal/cache"
	"github.com/archi-tools/inspector/internal/httpclient"
	"github.com/archi-tools/inspector/internal/xerrors"
	"github.com/archi-tools/inspector/pkg/diffinterp"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
)

const Scheme = "gitlab"

// Examples:
//
//	gitlab://mygitlab.io/group/project/-/blob/main/some/path/file.txt@7e38559d
var blobPattern = regexp.MustCompile(`^(.+)/-/blob/([^/]+)/(.+)$`)

// Resolver dispatches gitlab:// references to the GitLab REST compare and
// file-content APIs over one HTTP client shared by all of its requests.
type Resolver struct {
	client    *http.Client
	token     string
	cache     cache.Cache
	apiScheme string
	logger    logr.Logger
}

// Option configures a Resolver beyond its required constructor arguments.
type Option func(*Resolver)

// WithAPIScheme overrides the scheme used to reach the GitLab REST API,
// defaulting to "https". Self-hosted instances behind plain HTTP (and tests
// pointed at an httptest.Server) can override it.
func WithAPIScheme(scheme string) Option {
	return func(r *Resolver) { r.apiScheme = scheme }
}

// WithLogger attaches logger, used to warn on downgraded transport failures.
func WithLogger(logger logr.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns a gitlab:// resolver authenticating with token (empty is
// anonymous/public-project access).
func New(token string, timeout time.Duration, store cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		client:    httpclient.NewClient(httpclient.GitLabClientConfig(timeout)),
		token:     token,
		cache:     store,
		apiScheme: "https",
		logger:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Scheme() string { return Scheme }

type blobRef struct {
	projectID  string
	fileBranch string
	filePath   string
}

func parseBlobPath(path string) (blobRef, error) {
	m := blobPattern.FindStringSubmatch(path)
	if m == nil {
		return blobRef{}, fmt.Errorf("gitlab: path %q does not match .../-/blob/<ref>/<path>", path)
	}
	return blobRef{projectID: m[1], fileBranch: m[2], filePath: m[3]}, nil
}

// Resolve fetches ref's blob content and last commit id at the branch/tag
// named in the path (not the pin — Resolve is the non-diff, "just read the
// current file" path used when the reference is unpinned or the resolver is
// asked outside a Diff-capable flow).
func (r *Resolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	blob, err := parseBlobPath(ref.Path)
	if err != nil {
		return nil, xerrors.FailedToWithDetails("parse gitlab reference", Scheme, ref.String(), err)
	}

	meta, err := r.fetchFileMeta(ctx, ref.Authority, blob.projectID, blob.filePath, blob.fileBranch)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	lines := strings.Split(meta.content, "\n")
	from, to := 1, len(lines)
	if ref.Lines != nil {
		from, to = ref.Lines.From, ref.Lines.To
	}
	if from < 1 {
		from = 1
	}
	if to > len(lines) {
		to = len(lines)
	}
	var selected string
	if from <= len(lines) && to >= from {
		selected = strings.Join(lines[from-1:to], "\n")
	}

	commit := meta.commitID
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return resolver.VersionedContent{Bytes: []byte(selected), LastCommitID: commit}, nil
}

// Diff implements resolver.VersioningResolver: it compares ref's pinned
// commit against the branch/tag named in the path and classifies the
// queried line range's drift, grounded on UrlResolver.diff.
func (r *Resolver) Diff(ctx context.Context, ref refurl.Reference) (resolver.DiffOutcome, error) {
	blob, err := parseBlobPath(ref.Path)
	if err != nil {
		return nil, xerrors.FailedToWithDetails("parse gitlab reference", Scheme, ref.String(), err)
	}
	if !ref.Pinned() || ref.Lines == nil {
		return resolver.NoChange{}, nil
	}

	cmp, err := r.fetchCompare(ctx, ref.Authority, blob.projectID, ref.Commit, blob.fileBranch)
	if err != nil {
		return nil, err
	}
	if cmp == nil {
		return nil, nil
	}

	var diffText, newPath string
	found := false
	for _, d := range cmp.Diffs {
		if d.OldPath == blob.filePath {
			diffText = d.Diff
			newPath = d.NewPath
			found = true
			break
		}
	}
	if !found {
		return resolver.NoChange{}, nil
	}

	result, err := diffinterp.Interpret(diffText, ref.Lines.From, ref.Lines.To)
	if err != nil {
		return nil, xerrors.Wrapf(err, "interpret gitlab diff for %s", ref.String())
	}

	newPin := cmp.Commit.ShortID
	if newPin == "" {
		newPin = ref.Commit
	}
	updated := ref.WithCommit(newPin).WithFragment(result.Fragment())
	if newPath != "" && newPath != blob.filePath {
		updated = updated.WithPath(fmt.Sprintf("%s/-/blob/%s/%s", blob.projectID, blob.fileBranch, newPath))
	}

	switch result.Classification {
	case diffinterp.NoChange:
		return resolver.NoChange{}, nil
	case diffinterp.LinesMoved:
		return resolver.LinesMoved{UpdatedURL: updated.String(), CurrentLinesContent: result.Now}, nil
	default: // diffinterp.ContentChanged
		return resolver.ContentChanged{
			UpdatedURL:          updated.String(),
			CurrentLinesContent: result.Now,
			WasLinesContent:     result.Was,
		}, nil
	}
}

type fileMeta struct {
	content  string
	commitID string
}

func (r *Resolver) fetchFileMeta(ctx context.Context, host, projectID, filePath, ref string) (*fileMeta, error) {
	endpoint := fmt.Sprintf("%s://%s/api/v4/projects/%s/repository/files/%s?ref=%s",
		r.apiScheme, host, url.PathEscape(projectID), url.PathEscape(filePath), url.QueryEscape(ref))

	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		CommitID string `json:"last_commit_id"`
	}
	status, err := r.getJSON(ctx, endpoint, &payload)
	if err != nil {
		return nil, err
	}
	if status == 0 || status >= 300 {
		return nil, nil
	}

	content := payload.Content
	if payload.Encoding == "base64" {
		decoded, err := decodeBase64(content)
		if err != nil {
			return nil, xerrors.FailedToWithDetails("decode gitlab file content", Scheme, endpoint, err)
		}
		content = decoded
	}
	return &fileMeta{content: content, commitID: payload.CommitID}, nil
}

type compareResult struct {
	Commit struct {
		ShortID string `json:"short_id"`
	} `json:"commit"`
	Diffs []struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
		Diff    string `json:"diff"`
	} `json:"diffs"`
}

func (r *Resolver) fetchCompare(ctx context.Context, host, projectID, from, to string) (*compareResult, error) {
	key := cache.DiffKey(host, projectID, from, to)
	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx, key); err == nil && ok {
			var cmp compareResult
			if err := json.Unmarshal(cached, &cmp); err == nil {
				return &cmp, nil
			}
		}
	}

	endpoint := fmt.Sprintf("%s://%s/api/v4/projects/%s/repository/compare?from=%s&to=%s",
		r.apiScheme, host, url.PathEscape(projectID), url.QueryEscape(from), url.QueryEscape(to))

	var cmp compareResult
	status, err := r.getJSON(ctx, endpoint, &cmp)
	if err != nil {
		return nil, err
	}
	if status == 0 || status >= 300 {
		return nil, nil
	}

	if r.cache != nil {
		if raw, err := json.Marshal(cmp); err == nil {
			_ = r.cache.Set(ctx, key, raw, 5*time.Minute)
		}
	}
	return &cmp, nil
}

func (r *Resolver) getJSON(ctx context.Context, endpoint string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if r.token != "" {
		req.Header.Set("PRIVATE-TOKEN", r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Info("gitlab api call failed, treating as no content", "endpoint", endpoint, "error", err.Error())
		return 0, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, xerrors.ParseError(endpoint, "json", err)
	}
	return resp.StatusCode, nil
}
