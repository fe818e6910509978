package rwrouter

import "strings"

// MakeCompoundDSN combines primary and replica DSNs to build a compound DSN
func MakeCompoundDSN(primaryDSN string, replicaDSNs ...string) string {
	return strings.Join(append([]string{primaryDSN}, replicaDSNs...), ";")
}

// ParseCompoundDSN breaks up a compound DSN into its component DSNs. The first is the primary; the rest are replicas.
// It fails with a ConfigurationError if no primary DSN is present.
func ParseCompoundDSN(dsn string) (string, []string, error) {
	// lazily break up between semicolons
	dsns := []string{}
	for _, part := range strings.Split(dsn, ";") {
		if part = strings.TrimSpace(part); part != "" {
			dsns = append(dsns, part)
		}
	}
	if len(dsns) == 0 {
		return "", nil, configErrorf("compound DSN %q has no primary", dsn)
	}
	return dsns[0], dsns[1:], nil
}
