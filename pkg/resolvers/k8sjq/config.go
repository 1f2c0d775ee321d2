package k8sjq

import (
	"bufio"
	"os"
	"strings"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/archi-tools/inspector/internal/xerrors"
)

// NewClientFactory builds a ClientFactory backed by kubeconfigPath,
// overriding the current-context to the requested context name per call.
func NewClientFactory(kubeconfigPath string) ClientFactory {
	return func(contextName string) (dynamic.Interface, error) {
		cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
			&clientcmd.ConfigOverrides{CurrentContext: contextName},
		).ClientConfig()
		if err != nil {
			return nil, err
		}
		return dynamic.NewForConfig(cfg)
	}
}

// LoadContextWhitelist reads whitelistFile (one kubeconfig context name per
// line, matching the original's k8s_plugin_whitelisted_kubectl_contexts.txt)
// and resolves each context's API server host, returning a host->context map
// a Resolver can whitelist against.
func LoadContextWhitelist(whitelistFile, kubeconfigPath string) (map[string]string, error) {
	f, err := os.Open(whitelistFile)
	if err != nil {
		return nil, xerrors.FailedToWithDetails("read kubernetes context whitelist", Scheme, whitelistFile, err)
	}
	defer f.Close()

	hostForContext := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		contextName := strings.TrimSpace(sc.Text())
		if contextName == "" {
			continue
		}

		cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
			&clientcmd.ConfigOverrides{CurrentContext: contextName},
		).ClientConfig()
		if err != nil {
			// A context that doesn't resolve locally is skipped, not fatal,
			// matching the original's ConfigException handling.
			continue
		}
		hostForContext[cfg.Host] = contextName
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.FailedToWithDetails("read kubernetes context whitelist", Scheme, whitelistFile, err)
	}
	return hostForContext, nil
}
