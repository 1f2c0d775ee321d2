// Package k8sjq implements the k8s+jq resolver: it looks up one Kubernetes
// object through the dynamic client and evaluates a jq expression against
// it, replacing the original k8s+jmespath plugin's jmespath query language
// (absent from the pack) with itchyny/gojq.
//
// Reference form:
//
//	k8sjq://<apiserver-host>/ns=<namespace>/<group>/<version>/<kind>/<name>#<jq expression>
package k8sjq

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/itchyny/gojq"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/archi-tools/inspector/internal/xerrors"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
)

const Scheme = "k8sjq"

// Example path: "ns=some-namespace/networking.k8s.io/v1/Ingress/some-name"
var pathPattern = regexp.MustCompile(`^ns=([^/]+)/([^/]*)/([^/]+)/([^/]+)/(.+)$`)

// ClientFactory builds a dynamic client for the kubeconfig context
// whitelisted against a given API server host, narrowed to the one method
// this resolver calls so tests can supply a fake.
type ClientFactory func(contextName string) (dynamic.Interface, error)

// Resolver looks up one namespaced object per reference and evaluates a jq
// expression against its unstructured content.
type Resolver struct {
	contextForHost map[string]string // apiserver host -> whitelisted kubeconfig context
	newClient      ClientFactory
	logger         logr.Logger

	mu      sync.Mutex
	clients map[string]dynamic.Interface // context name -> cached client
}

// Option configures a Resolver beyond its required constructor arguments.
type Option func(*Resolver)

// WithLogger attaches logger, used to warn on downgraded transport failures.
func WithLogger(logger logr.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns a k8s+jq resolver. contextForHost whitelists which kubeconfig
// context may be used to reach each API server host (§ the original's
// k8s_plugin_whitelisted_kubectl_contexts.txt); a host missing from the map
// is refused.
func New(contextForHost map[string]string, newClient ClientFactory, opts ...Option) *Resolver {
	r := &Resolver{
		contextForHost: contextForHost,
		newClient:      newClient,
		clients:        make(map[string]dynamic.Interface),
		logger:         logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Scheme() string { return Scheme }

// Resolve fetches the referenced object and evaluates ref's fragment as a jq
// expression against its unstructured form. A 404 from the API server
// resolves to (nil, nil), matching the original's ApiException(404) handling.
func (r *Resolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	m := pathPattern.FindStringSubmatch(ref.Path)
	if m == nil {
		return nil, xerrors.FailedToWithDetails("parse kubernetes reference", Scheme, ref.String(),
			fmt.Errorf("path does not match ns=<namespace>/<group>/<version>/<kind>/<name>"))
	}
	namespace, group, version, kind, name := m[1], m[2], m[3], m[4], m[5]

	contextName, ok := r.contextForHost[ref.Authority]
	if !ok {
		return nil, xerrors.FailedToWithDetails("resolve kubernetes reference", Scheme, ref.String(),
			fmt.Errorf("host %q is not whitelisted", ref.Authority))
	}

	client, err := r.clientFor(contextName)
	if err != nil {
		return nil, err
	}

	gvr := schema.GroupVersionResource{Group: group, Version: version, Resource: pluralize(kind)}
	obj, err := client.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		r.logger.Info("kubernetes api call failed, treating as no content", "ref", ref.String(), "error", err.Error())
		return nil, nil
	}

	query, err := gojq.Parse(ref.RawFragment)
	if err != nil {
		return nil, xerrors.ParseError(ref.RawFragment, "jq expression", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, xerrors.ParseError(ref.RawFragment, "jq expression", err)
	}

	iter := code.Run(obj.UnstructuredContent())
	v, hasResult := iter.Next()
	if !hasResult {
		return resolver.Content{Bytes: nil}, nil
	}
	if jqErr, isErr := v.(error); isErr {
		return nil, xerrors.Wrapf(jqErr, "evaluate jq expression %q", ref.RawFragment)
	}

	return resolver.Content{Bytes: []byte(fmt.Sprintf("%v", v))}, nil
}

func (r *Resolver) clientFor(contextName string) (dynamic.Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[contextName]; ok {
		return c, nil
	}
	c, err := r.newClient(contextName)
	if err != nil {
		return nil, xerrors.FailedToWithDetails("build kubernetes client", Scheme, contextName, err)
	}
	r.clients[contextName] = c
	return c, nil
}

// pluralize approximates the Kind-to-resource mapping the original left to
// kubernetes-client's server-side discovery. A reimplementation grounded on
// a static mapping instead of a live RESTMapper lookup; non-standard plurals
// (e.g. "Endpoints") must be added here as they come up.
func pluralize(kind string) string {
	lower := strings.ToLower(kind)
	switch {
	case strings.HasSuffix(lower, "s"):
		return lower + "es"
	case strings.HasSuffix(lower, "y"):
		return strings.TrimSuffix(lower, "y") + "ies"
	default:
		return lower + "s"
	}
}
