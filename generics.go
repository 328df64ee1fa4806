package odata

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

func decodeAs[T any](cmd *Command, raw json.RawMessage) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	out := new(T)
	if err := cmd.client.codec.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("odata: failed to decode %T: %w", *out, err)
	}
	return out, nil
}

// FindEntriesAs is FindEntries decoding every entry into T.
//
// Example:
//
//	people, err := odata.FindEntriesAs[Person](ctx, client.For("People").Top(10), nil)
func FindEntriesAs[T any](ctx context.Context, cmd *Command, ann *Annotations) ([]T, error) {
	raws, err := cmd.findEntriesRaw(ctx, ann)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(raws))
	for i, raw := range raws {
		if err := cmd.client.codec.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("odata: failed to decode %T: %w", out[i], err)
		}
	}
	return out, nil
}

// FindEntryAs is FindEntry decoding the entity into T. It returns nil when
// the entity does not exist.
func FindEntryAs[T any](ctx context.Context, cmd *Command) (*T, error) {
	raw, err := cmd.findEntryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAs[T](cmd, raw)
}

// InsertEntryAs is InsertEntry decoding the created entity into T.
func InsertEntryAs[T any](ctx context.Context, cmd *Command) (*T, error) {
	raw, err := cmd.insertEntryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAs[T](cmd, raw)
}

// UpdateEntryAs is UpdateEntry decoding the updated entity into T.
func UpdateEntryAs[T any](ctx context.Context, cmd *Command) (*T, error) {
	raw, err := cmd.updateEntryRaw(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAs[T](cmd, raw)
}

// ExecuteAsSingleAs is ExecuteAsSingle decoding the result into T.
func ExecuteAsSingleAs[T any](ctx context.Context, cmd *Command) (*T, error) {
	raw, err := cmd.executeSingleRaw(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAs[T](cmd, raw)
}
