package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
)

// PutCheckpoint persists a checkpoint record. The single INSERT makes the
// write atomic; no reader ever observes a partial checkpoint.
func (s *Store) PutCheckpoint(ctx context.Context, cp ir.Checkpoint) error {
	frontier, err := marshalStrings(cp.Frontier)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", cp.CheckpointID, err)
	}
	pending, err := marshalStrings(cp.Pending)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", cp.CheckpointID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (
			checkpoint_id, lineage, frontier, env_snapshot, env_hash,
			pending, created_seq, consumed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.CheckpointID, cp.Lineage, frontier, cp.EnvSnapshot, cp.EnvHash,
		pending, cp.CreatedSeq, boolToInt(cp.Consumed),
	)
	if err != nil {
		return fmt.Errorf("put checkpoint %s: %w", cp.CheckpointID, err)
	}
	return nil
}

// Checkpoint loads one checkpoint by id.
func (s *Store) Checkpoint(ctx context.Context, checkpointID string) (ir.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT checkpoint_id, lineage, frontier, env_snapshot, env_hash,
		       pending, created_seq, consumed
		FROM checkpoints WHERE checkpoint_id = ?`, checkpointID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", checkpointID, ErrNotFound)
	}
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", checkpointID, err)
	}
	return cp, nil
}

// OpenCheckpoints returns unconsumed checkpoints oldest first, restricted
// to one lineage when lineage is non-empty.
func (s *Store) OpenCheckpoints(ctx context.Context, lineage string) ([]ir.Checkpoint, error) {
	q := `
		SELECT checkpoint_id, lineage, frontier, env_snapshot, env_hash,
		       pending, created_seq, consumed
		FROM checkpoints
		WHERE consumed = 0`
	var params []any
	if lineage != "" {
		q += ` AND lineage = ?`
		params = append(params, lineage)
	}
	q += ` ORDER BY created_seq ASC`
	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("open checkpoints: %w", err)
	}
	defer rows.Close()
	var cps []ir.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// ConsumeCheckpoint flips the consumed flag. Already-consumed checkpoints
// pass through unchanged so that a repeated resume stays idempotent.
func (s *Store) ConsumeCheckpoint(ctx context.Context, checkpointID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints SET consumed = 1 WHERE checkpoint_id = ?`, checkpointID)
	if err != nil {
		return fmt.Errorf("consume checkpoint %s: %w", checkpointID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume checkpoint %s: %w", checkpointID, err)
	}
	if n == 0 {
		return fmt.Errorf("checkpoint %s: %w", checkpointID, ErrNotFound)
	}
	return nil
}

func scanCheckpoint(row rowScanner) (ir.Checkpoint, error) {
	var (
		cp       ir.Checkpoint
		frontier string
		pending  string
		consumed int
	)
	err := row.Scan(
		&cp.CheckpointID, &cp.Lineage, &frontier, &cp.EnvSnapshot, &cp.EnvHash,
		&pending, &cp.CreatedSeq, &consumed,
	)
	if err != nil {
		return ir.Checkpoint{}, err
	}
	cp.Consumed = consumed != 0
	if cp.Frontier, err = unmarshalStrings(frontier); err != nil {
		return ir.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", cp.CheckpointID, err)
	}
	if cp.Pending, err = unmarshalStrings(pending); err != nil {
		return ir.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", cp.CheckpointID, err)
	}
	return cp, nil
}
