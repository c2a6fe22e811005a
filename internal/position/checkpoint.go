package position

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/model"
	"lpbacktest/internal/storage/postgres"
)

// CheckpointStore persists fee checkpoints by position key.
type CheckpointStore interface {
	Load(ctx context.Context, key string) (model.FeeCheckpoint, bool, error)
	Save(ctx context.Context, cp model.FeeCheckpoint) error
}

// CheckpointKey is the store key of the requested range of req.
func CheckpointKey(req Request) string {
	return model.CheckpointKey(req.Pool.Hex(), req.TickLower, req.TickUpper)
}

// NewCheckpoint records the inside growth of pos at block. The key is the
// requested range of req; pos carries the aligned range.
func NewCheckpoint(req Request, pos feegrowth.Position, block uint64) model.FeeCheckpoint {
	return model.FeeCheckpoint{
		Pool:             req.Pool.Hex(),
		TickLower:        req.TickLower,
		TickUpper:        req.TickUpper,
		AlignedLower:     pos.TickLower,
		AlignedUpper:     pos.TickUpper,
		Liquidity:        pos.Liquidity.String(),
		Block:            block,
		FeeGrowthInside0: pos.Checkpoint.Token0.String(),
		FeeGrowthInside1: pos.Checkpoint.Token1.String(),
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// GrowthFromCheckpoint parses the stored inside growth.
func GrowthFromCheckpoint(cp model.FeeCheckpoint) (feegrowth.Growth, error) {
	g0, err := fixedpoint.Parse(cp.FeeGrowthInside0)
	if err != nil {
		return feegrowth.Growth{}, fmt.Errorf("parse checkpoint token0: %w", err)
	}
	g1, err := fixedpoint.Parse(cp.FeeGrowthInside1)
	if err != nil {
		return feegrowth.Growth{}, fmt.Errorf("parse checkpoint token1: %w", err)
	}
	return feegrowth.Growth{Token0: g0, Token1: g1}, nil
}

// LoadBaseline reads the checkpoint stored for the requested range of req.
// It returns nil when none is stored or it was taken after req.CurrentBlock.
func LoadBaseline(ctx context.Context, store CheckpointStore, req Request) (*Baseline, error) {
	cp, found, err := store.Load(ctx, CheckpointKey(req))
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if !found || cp.Block > req.CurrentBlock {
		return nil, nil
	}
	growth, err := GrowthFromCheckpoint(cp)
	if err != nil {
		return nil, err
	}
	return &Baseline{Growth: growth, TickLower: cp.AlignedLower, TickUpper: cp.AlignedUpper, Block: cp.Block}, nil
}

// Advance collects the fees of report and stores the advanced checkpoint
// under the requested range.
func Advance(ctx context.Context, store CheckpointStore, report Report) (model.FeeCheckpoint, error) {
	pos := report.Position
	if _, err := pos.Collect(report.CurrentInside); err != nil {
		return model.FeeCheckpoint{}, err
	}
	cp := NewCheckpoint(report.Request, pos, report.Request.CurrentBlock)
	if err := store.Save(ctx, cp); err != nil {
		return model.FeeCheckpoint{}, fmt.Errorf("save checkpoint: %w", err)
	}
	return cp, nil
}

// FileCheckpointStore stores checkpoints in a local JSON file keyed by position.
type FileCheckpointStore struct {
	Path string

	mu sync.Mutex
}

func (s *FileCheckpointStore) Load(ctx context.Context, key string) (model.FeeCheckpoint, bool, error) {
	if s == nil || s.Path == "" {
		return model.FeeCheckpoint{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return model.FeeCheckpoint{}, false, err
	}
	cp, ok := all[key]
	return cp, ok, nil
}

func (s *FileCheckpointStore) Save(ctx context.Context, cp model.FeeCheckpoint) error {
	if s == nil || s.Path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[cp.Key()] = cp

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

func (s *FileCheckpointStore) readAll() (map[string]model.FeeCheckpoint, error) {
	all := map[string]model.FeeCheckpoint{}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return all, nil
}

// DBCheckpointStore stores checkpoints in the fee_checkpoints table.
type DBCheckpointStore struct {
	Store *postgres.Store
}

func (s *DBCheckpointStore) Load(ctx context.Context, key string) (model.FeeCheckpoint, bool, error) {
	if s == nil || s.Store == nil {
		return model.FeeCheckpoint{}, false, nil
	}
	return s.Store.LoadCheckpoint(ctx, key)
}

func (s *DBCheckpointStore) Save(ctx context.Context, cp model.FeeCheckpoint) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveCheckpoint(ctx, cp)
}

// PositionFromCheckpoint rebuilds the position a checkpoint was taken for,
// over its aligned range.
func PositionFromCheckpoint(cp model.FeeCheckpoint) (feegrowth.Position, error) {
	l, err := fixedpoint.Parse(cp.Liquidity)
	if err != nil {
		return feegrowth.Position{}, fmt.Errorf("parse checkpoint liquidity: %w", err)
	}
	growth, err := GrowthFromCheckpoint(cp)
	if err != nil {
		return feegrowth.Position{}, err
	}
	return feegrowth.NewPosition(cp.AlignedLower, cp.AlignedUpper, l, growth)
}
