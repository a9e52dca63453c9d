package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/forum/backend/internal/models"
	"github.com/emilythestrangee/forum/backend/internal/voting"
)

// PostgreSQL error codes that mean a concurrent transaction got in the way.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// VoteStore is the PostgreSQL implementation of voting.Store.
type VoteStore struct {
	db *gorm.DB
}

func NewVoteStore(db *gorm.DB) *VoteStore {
	return &VoteStore{db: db}
}

func targetTable(target voting.Target) (string, error) {
	switch target.Kind() {
	case voting.KindPost:
		return "posts", nil
	case voting.KindComment:
		return "comments", nil
	default:
		return "", voting.ErrUnknownTarget
	}
}

// Apply inserts the vote or compares and updates the existing row, then
// increments the target's score in the same transaction. The insert uses
// ON CONFLICT DO NOTHING against the (user_id, target_type, target_id)
// index, so two first votes from one user cannot both insert.
func (s *VoteStore) Apply(ctx context.Context, userID int, target voting.Target, value voting.Value) (voting.Result, error) {
	table, err := targetTable(target)
	if err != nil {
		return voting.Result{}, err
	}

	res := voting.Result{Target: target, Value: value}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table(table).Where("id = ?", target.ID()).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return voting.ErrTargetNotFound
		}

		vote := models.Vote{
			UserID:     userID,
			TargetType: target.Kind().String(),
			TargetID:   target.ID(),
			Value:      int(value),
		}
		ins := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&vote)
		if ins.Error != nil {
			return ins.Error
		}

		if ins.RowsAffected == 1 {
			res.Outcome = voting.Created
			res.Delta = int(value)
		} else {
			var existing models.Vote
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ? AND target_type = ? AND target_id = ?", userID, vote.TargetType, vote.TargetID).
				Take(&existing).Error
			if err != nil {
				return err
			}

			if existing.Value == int(value) {
				res.Outcome = voting.Unchanged
			} else {
				res.Outcome = voting.Flipped
				res.Delta = int(value) - existing.Value
				if err := tx.Model(&existing).Update("value", int(value)).Error; err != nil {
					return err
				}
			}
		}

		if res.Delta != 0 {
			upd := tx.Table(table).Where("id = ?", target.ID()).
				UpdateColumn("score", gorm.Expr("score + ?", res.Delta))
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected == 0 {
				return voting.ErrTargetNotFound
			}
		}

		return tx.Table(table).Select("score").Where("id = ?", target.ID()).Row().Scan(&res.Score)
	})
	if err != nil {
		return voting.Result{}, classifyError(err)
	}
	return res, nil
}

// classifyError marks retryable failures with voting.ErrConflict. Errors
// surfaced through GORM arrive translated, raw driver errors do not.
func classifyError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", voting.ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%w: %w", voting.ErrConflict, err)
		}
	}
	return err
}

// VoteCount returns the number of ledger rows referencing target.
func (s *VoteStore) VoteCount(ctx context.Context, target voting.Target) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("target_type = ? AND target_id = ?", target.Kind().String(), target.ID()).
		Count(&n).Error
	return n, err
}

// PostScores returns every post's current score, keyed by post id.
func PostScores(ctx context.Context, db *gorm.DB) (map[int]int, error) {
	var rows []struct {
		ID    int
		Score int
	}
	if err := db.WithContext(ctx).Model(&models.Post{}).Select("id, score").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading post scores: %w", err)
	}

	scores := make(map[int]int, len(rows))
	for _, r := range rows {
		scores[r.ID] = r.Score
	}
	return scores, nil
}
