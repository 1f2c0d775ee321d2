// Package awssecret implements the awssecret:// resolver: a whitelisted call
// against AWS Secrets Manager, narrowing the original boto3 plugin's
// call-any-service-method design down to the one service/method pair this
// repository actually needs, grounded on the same whitelist-then-invoke
// shape.
//
// Reference form:
//
//	awssecret://secretsmanager/get-secret-value?SecretId=arn:...&VersionStage=AWSCURRENT#SecretString
package awssecret

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-logr/logr"

	"github.com/archi-tools/inspector/internal/xerrors"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
)

const Scheme = "awssecret"

const methodGetSecretValue = "get-secret-value"

// SecretsManagerAPI is the subset of *secretsmanager.Client this resolver
// calls, narrowed so tests can supply a stub.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver calls whitelisted Secrets Manager methods, grounded on the
// original boto3 plugin's whitelist-then-invoke pattern.
type Resolver struct {
	client    SecretsManagerAPI
	whitelist map[string][]string // service -> allowed method names
	logger    logr.Logger
}

// Option configures a Resolver beyond its required constructor arguments.
type Option func(*Resolver)

// WithLogger attaches logger, used to warn on downgraded transport failures.
func WithLogger(logger logr.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns an awssecret:// resolver. whitelist maps a service name (e.g.
// "secretsmanager") to the method names permitted against it, loaded from
// internal/config's hot-reloaded whitelist file.
func New(client SecretsManagerAPI, whitelist map[string][]string, opts ...Option) *Resolver {
	r := &Resolver{client: client, whitelist: whitelist, logger: logr.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Scheme() string { return Scheme }

// Resolve dispatches ref's service/method/params, returning the field named
// by ref's fragment (or the secret's SecretString when the fragment is
// empty).
func (r *Resolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	service := ref.Authority
	method := ref.Path

	if !r.whitelisted(service, method) {
		return nil, xerrors.FailedToWithDetails("call aws secret reference", Scheme, ref.String(),
			fmt.Errorf("service/method is not whitelisted: %s.%s", service, method))
	}

	params, err := url.ParseQuery(ref.Query)
	if err != nil {
		return nil, xerrors.ParseError(ref.Query, "query string", err)
	}

	switch method {
	case methodGetSecretValue:
		return r.getSecretValue(ctx, ref, params)
	default:
		return nil, xerrors.FailedToWithDetails("call aws secret reference", Scheme, ref.String(),
			fmt.Errorf("unsupported method: %s", method))
	}
}

func (r *Resolver) whitelisted(service, method string) bool {
	methods, ok := r.whitelist[service]
	if !ok {
		return false
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

func (r *Resolver) getSecretValue(ctx context.Context, ref refurl.Reference, params url.Values) (resolver.ResolveResult, error) {
	input := &secretsmanager.GetSecretValueInput{}
	if v := params.Get("SecretId"); v != "" {
		input.SecretId = &v
	}
	if v := params.Get("VersionId"); v != "" {
		input.VersionId = &v
	}
	if v := params.Get("VersionStage"); v != "" {
		input.VersionStage = &v
	}

	out, err := r.client.GetSecretValue(ctx, input)
	if err != nil {
		r.logger.Info("aws secrets manager call failed, treating as no content", "ref", ref.String(), "error", err.Error())
		return nil, nil
	}

	switch ref.RawFragment {
	case "", "SecretString":
		if out.SecretString == nil {
			return resolver.Content{Bytes: nil}, nil
		}
		return resolver.Content{Bytes: []byte(*out.SecretString)}, nil
	case "SecretBinary":
		return resolver.Content{Bytes: out.SecretBinary}, nil
	case "ARN":
		if out.ARN == nil {
			return resolver.Content{Bytes: nil}, nil
		}
		return resolver.Content{Bytes: []byte(*out.ARN)}, nil
	case "VersionId":
		if out.VersionId == nil {
			return resolver.Content{Bytes: nil}, nil
		}
		return resolver.Content{Bytes: []byte(*out.VersionId)}, nil
	default:
		return nil, xerrors.FailedToWithDetails("extract aws secret field", Scheme, ref.String(),
			fmt.Errorf("unknown field: %s", ref.RawFragment))
	}
}
