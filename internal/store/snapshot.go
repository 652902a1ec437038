package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atmx/amm-market/internal/model"
)

// LoadSnapshot reads the five snapshot blobs. A missing blob leaves its part
// absent (nil). Blobs that fail to load or decode are reported in the joined
// error; the remaining parts are still returned.
func LoadSnapshot(ctx context.Context, st Store) (model.Snapshot, error) {
	var (
		snap model.Snapshot
		errs []error
	)
	parts := []struct {
		key string
		dst any
	}{
		{model.BlobAccounts, &snap.Accounts},
		{model.BlobLedger, &snap.Trades},
		{model.BlobPriceSeries, &snap.Prices},
		{model.BlobLiquidityPool, &snap.Pool},
		{model.BlobAgentPopulation, &snap.Agents},
	}

	for _, p := range parts {
		if err := loadJSON(ctx, st, p.key, p.dst); err != nil {
			errs = append(errs, err)
		}
	}
	return snap, errors.Join(errs...)
}

func loadJSON(ctx context.Context, st Store, key string, dst any) error {
	blob, err := st.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return fmt.Errorf("decode blob %s: %w", key, err)
	}
	return nil
}

// SaveSnapshot writes every part of snap as its own blob. All parts are
// attempted; failures are joined.
func SaveSnapshot(ctx context.Context, st Store, snap model.Snapshot) error {
	parts := []struct {
		key string
		v   any
	}{
		{model.BlobAccounts, snap.Accounts},
		{model.BlobLedger, snap.Trades},
		{model.BlobPriceSeries, snap.Prices},
		{model.BlobLiquidityPool, snap.Pool},
		{model.BlobAgentPopulation, snap.Agents},
	}

	var errs []error
	for _, p := range parts {
		blob, err := json.Marshal(p.v)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode blob %s: %w", p.key, err))
			continue
		}
		if err := st.Save(ctx, p.key, blob); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
