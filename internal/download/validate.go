// validate.go holds the input checks that run before any fetcher is spawned.
package download

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/modelplane/modelplane/internal/catalog"
)

// modelIDPattern accepts catalog-style ids: letters, digits, dot,
// underscore, hyphen. Uppercase and dots appear in real catalog ids.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateModelID reports whether id is a well-formed model identifier.
func ValidateModelID(id string) bool {
	return id != "" && len(id) <= 100 && modelIDPattern.MatchString(id)
}

// ValidateFilename reports whether name is safe to use as an artifact
// file name. Path traversal and separators are rejected outright.
func ValidateFilename(name string) bool {
	if strings.Contains(name, "..") ||
		strings.Contains(name, "/") ||
		strings.Contains(name, "\\") {
		return false
	}
	return strings.HasSuffix(name, ".gguf") && len(name) < 100
}

// ValidateURL reports whether raw is an https URL whose host is covered by
// the catalog's allow-list.
func ValidateURL(raw string, cat *catalog.Catalog) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	return cat.HostAllowed(u.Hostname())
}

// fetcherArgs maps a method kind to the fetcher invocation prefix. The
// output path and URL are appended in that order.
var fetcherArgs = map[string][]string{
	catalog.MethodWget: {"wget", "-c", "--progress=dot:giga", "-O"},
	catalog.MethodCurl: {"curl", "-L", "-C", "-", "--progress-bar", "-o"},
}

// buildCommand assembles the fetcher argv for a method.
//
// URLs carrying shell metacharacters are rejected here as a final guard;
// the argv never passes through a shell, but a URL like that has no
// business reaching a subprocess at all.
func buildCommand(kind, rawURL, outputFile string) ([]string, error) {
	base, ok := fetcherArgs[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported transfer method %q", kind)
	}

	if strings.ContainsAny(rawURL, ";&|`") {
		return nil, fmt.Errorf("url contains forbidden characters")
	}

	cmd := make([]string, 0, len(base)+2)
	cmd = append(cmd, base...)
	cmd = append(cmd, outputFile, rawURL)
	return cmd, nil
}
