package awssecret

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/archi-tools/inspector/internal/xerrors"
)

// WhitelistEntry names one service and the methods permitted against it,
// read from the file internal/config.AWSSecretResolverConfig.WhitelistFile
// names (replacing the original's
// boto3_plugin_whitelisted_services_and_methods.yaml).
type WhitelistEntry struct {
	Service string   `yaml:"service" validate:"required"`
	Methods []string `yaml:"methods" validate:"required,min=1,dive,oneof=get-secret-value"`
}

var whitelistValidator = validator.New()

// LoadWhitelist reads and validates the whitelist file at path into the
// map[service][]methods Resolver.New expects.
func LoadWhitelist(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.FailedToWithDetails("read aws whitelist file", Scheme, path, err)
	}

	var entries []WhitelistEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, xerrors.ParseError(path, "yaml", err)
	}

	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		if err := whitelistValidator.Struct(e); err != nil {
			return nil, xerrors.ValidationError("whitelist entry", err.Error())
		}
		out[e.Service] = e.Methods
	}
	return out, nil
}
