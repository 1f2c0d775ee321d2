package https

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archi-tools/inspector/internal/xerrors"
)

// LoadHeaders reads path as a flat string-to-string YAML map of headers sent
// with every https:// request, grounded on the original's
// https_plugin_headers.yaml. An empty path returns an empty map.
func LoadHeaders(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.FailedToWithDetails("read https headers file", Scheme, path, err)
	}
	headers := map[string]string{}
	if err := yaml.Unmarshal(data, &headers); err != nil {
		return nil, xerrors.ParseError(path, "yaml", err)
	}
	return headers, nil
}
