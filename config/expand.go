package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment references in s.
//
// $VAR and ${VAR} expand like os.ExpandEnv, except that a ${VAR} naming an
// unset variable is an error. $$ yields a literal $.
func ExpandEnvStrict(s string) (string, error) {
	const dollar = "\x00LOCATOR_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	missing := make(map[string]struct{})
	for _, match := range envRefPattern.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(match[1]); !ok {
			missing[match[1]] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(keys, ", "))
	}

	s = os.ExpandEnv(s)
	return strings.ReplaceAll(s, dollar, "$"), nil
}

// expandAll expands each field in place and reports the first failure by key.
func expandAll(fields map[string]*string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := ExpandEnvStrict(*fields[k])
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*fields[k] = v
	}
	return nil
}
