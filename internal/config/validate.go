package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the fields required for the given command scope are
// set. Scope is one of "create", "execute", "zips", "serve".
func (c *Config) Validate(scope string) error {
	var missing []string

	need := func(val, name string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	switch scope {
	case "create":
		need(c.Store.DatabaseURL, "store.database_url")
		need(c.LLM.APIKey, "llm.api_key")
		need(c.ZipCatalog.Path, "zipcatalog.path")
	case "execute":
		need(c.Store.DatabaseURL, "store.database_url")
		need(c.Apify.APIKey, "apify.api_key")
		need(c.LLM.APIKey, "llm.api_key")
		need(c.Verifier.APIKey, "verifier.api_key")
	case "zips":
		need(c.ZipCatalog.Path, "zipcatalog.path")
	case "serve":
		need(c.Store.DatabaseURL, "store.database_url")
		need(c.Apify.APIKey, "apify.api_key")
		need(c.LLM.APIKey, "llm.api_key")
		need(c.Verifier.APIKey, "verifier.api_key")
	default:
		return eris.Errorf("config: unknown validation scope %q", scope)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s",
			scope, strings.Join(missing, ", "))
	}

	return nil
}
