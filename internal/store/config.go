package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LoadConfig reads the config document id into a copy of defaults.
// A missing document is created from defaults, and keys that the stored
// document lacks are back-filled and written back.
func LoadConfig[T any](ctx context.Context, p *Partition, id string, defaults T) (T, error) {
	cfg := defaults

	raw, err := p.raw(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if err := p.Upsert(ctx, id, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return defaults, fmt.Errorf("store: decode %s/%s: %w", p.name, id, err)
	}

	missing, err := missingKeys(raw, defaults)
	if err != nil {
		return cfg, err
	}
	if len(missing) > 0 {
		if err := p.Upsert(ctx, id, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// missingKeys lists top-level keys present in the encoded defaults but absent
// from the stored document.
func missingKeys(stored []byte, defaults any) ([]string, error) {
	var have map[string]json.RawMessage
	if err := json.Unmarshal(stored, &have); err != nil {
		return nil, fmt.Errorf("store: inspect document: %w", err)
	}
	encoded, err := json.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("store: encode defaults: %w", err)
	}
	var want map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &want); err != nil {
		return nil, fmt.Errorf("store: inspect defaults: %w", err)
	}

	var missing []string
	for k := range want {
		if _, ok := have[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
