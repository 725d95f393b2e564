package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// VideoOrder is one (video, position) pair in a reorder request
type VideoOrder struct {
	VideoID    uuid.UUID `json:"videoId" binding:"required"`
	OrderIndex int       `json:"orderIndex" binding:"required"`
}

// ReorderIssue is one itemized problem found while validating a reorder.
// A request is applied only when the issue list is empty.
type ReorderIssue struct {
	VideoID    *uuid.UUID `json:"videoId,omitempty"`
	OrderIndex *int       `json:"orderIndex,omitempty"`
	Message    string     `json:"message"`
}

// ValidateReorder checks a proposed ordering against the series' current
// membership. The proposal must cover every member exactly once, reference
// no foreign videos, and use exactly the consecutive positions 1..N. All
// problems are collected rather than failing on the first one.
func ValidateReorder(members []uuid.UUID, orders []VideoOrder) []ReorderIssue {
	var issues []ReorderIssue

	memberSet := make(map[uuid.UUID]bool, len(members))
	for _, id := range members {
		memberSet[id] = false
	}

	seenIndex := make(map[int]bool, len(orders))
	for i := range orders {
		o := orders[i]

		seen, isMember := memberSet[o.VideoID]
		switch {
		case !isMember:
			id := o.VideoID
			issues = append(issues, ReorderIssue{
				VideoID: &id,
				Message: "video is not part of the series",
			})
		case seen:
			id := o.VideoID
			issues = append(issues, ReorderIssue{
				VideoID: &id,
				Message: "duplicate video id",
			})
		default:
			memberSet[o.VideoID] = true
		}

		if o.OrderIndex < 1 || o.OrderIndex > len(members) {
			idx := o.OrderIndex
			issues = append(issues, ReorderIssue{
				OrderIndex: &idx,
				Message:    fmt.Sprintf("order index out of range 1..%d", len(members)),
			})
		} else if seenIndex[o.OrderIndex] {
			idx := o.OrderIndex
			issues = append(issues, ReorderIssue{
				OrderIndex: &idx,
				Message:    "duplicate order index",
			})
		} else {
			seenIndex[o.OrderIndex] = true
		}
	}

	var missing []uuid.UUID
	for id, seen := range memberSet {
		if !seen {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
	for i := range missing {
		id := missing[i]
		issues = append(issues, ReorderIssue{
			VideoID: &id,
			Message: "video missing from reorder request",
		})
	}

	if len(orders) != len(members) {
		issues = append(issues, ReorderIssue{
			Message: fmt.Sprintf("expected %d entries, got %d", len(members), len(orders)),
		})
	}

	return issues
}

// ReorderVideos atomically replaces the ordering of a series. The new
// ordering is validated in full against the current membership under a
// series row lock; on any issue nothing is changed and the issues are
// returned alongside ErrReorderValidation.
func (s *Service) ReorderVideos(ctx context.Context, creatorID, seriesID uuid.UUID, orders []VideoOrder) ([]ReorderIssue, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var seriesCreator uuid.UUID
	err = tx.QueryRow(ctx, `SELECT creator_id FROM series WHERE id = $1 FOR UPDATE`, seriesID).Scan(&seriesCreator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to lock series: %w", err)
	}
	if seriesCreator != creatorID {
		return nil, ErrNotOwner
	}

	rows, err := tx.Query(ctx, `
		SELECT video_id FROM series_videos WHERE series_id = $1 ORDER BY order_index
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load series membership: %w", err)
	}
	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		members = append(members, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read membership rows: %w", err)
	}

	if issues := ValidateReorder(members, orders); len(issues) > 0 {
		return issues, ErrReorderValidation
	}

	// The (series_id, order_index) unique constraint is deferred, so the
	// per-row updates may pass through transient duplicates.
	for _, o := range orders {
		_, err := tx.Exec(ctx, `
			UPDATE series_videos SET order_index = $1
			WHERE series_id = $2 AND video_id = $3
		`, o.OrderIndex, seriesID, o.VideoID)
		if err != nil {
			return nil, fmt.Errorf("failed to update order index: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE series SET updated_at = NOW() WHERE id = $1`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch series: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reorder: %w", err)
	}

	s.log.Info().
		Str("series_id", seriesID.String()).
		Int("video_count", len(orders)).
		Msg("Series reordered")
	return nil, nil
}
