package config

import "os"

// expandEnv expands ${VAR} / $VAR references in raw YAML bytes before
// parsing, so tradedesk.yaml can reference secrets without embedding
// them. Missing variables expand to empty string; Validate catches
// required fields left empty by that.
func expandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
