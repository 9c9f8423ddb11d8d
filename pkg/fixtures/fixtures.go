// Package fixtures loads the Startup Bootstrapper's static seed data —
// famous-investor portfolio positions and economic-event calendars
// (spec.md §1: "out of scope" for *content*, but the loader mechanism
// itself is part of C9). Source files are plain YAML, read from an
// injectable Source rather than a hardcoded path, so a real
// deployment can point this at whatever directory its fixtures live in
// without a code change.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Fixture is one named seed row within a kind (e.g. kind="portfolio",
// key="warren_buffett").
type Fixture struct {
	Key     string
	Payload json.RawMessage
}

// Source supplies the raw fixture rows for one kind. Tests can supply
// an in-memory Source instead of reading real files.
type Source interface {
	Load(kind string) ([]Fixture, error)
}

// FileSource reads `<Dir>/<kind>.yaml`, a list of `{key, ...}` maps, and
// is a no-op (not an error) when the file does not exist — fixtures are
// optional, per §6.
type FileSource struct {
	Dir string
}

func (s FileSource) Load(kind string) ([]Fixture, error) {
	path := filepath.Join(s.Dir, kind+".yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var entries []map[string]any
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	out := make([]Fixture, 0, len(entries))
	for _, entry := range entries {
		key, _ := entry["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("%s: entry missing required \"key\" field", path)
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding entry %q: %w", path, key, err)
		}
		out = append(out, Fixture{Key: key, Payload: payload})
	}
	return out, nil
}

// Sink is the narrow slice of *store.Store the loader needs.
type Sink interface {
	UpsertFixture(ctx context.Context, kind, key string, payload []byte) error
}

// Kinds are the fixture kinds the bootstrapper loads, per §1/§6.
var Kinds = []string{"portfolio", "economic_events"}

// Load upserts every row of every kind found via src into sink. Missing
// files are silently skipped (not every deployment ships fixtures);
// malformed ones are a hard error since that indicates a broken config
// drop rather than an absent one.
func Load(ctx context.Context, src Source, sink Sink) (int, error) {
	total := 0
	for _, kind := range Kinds {
		rows, err := src.Load(kind)
		if err != nil {
			return total, err
		}
		for _, row := range rows {
			if err := sink.UpsertFixture(ctx, kind, row.Key, row.Payload); err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}
