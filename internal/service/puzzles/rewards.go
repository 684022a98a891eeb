package puzzles

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/rewards"
	"github.com/park285/cheese-puzzle/internal/sessionstore"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

var errAlreadyRewarded = errors.New("session already rewarded")

// grant rewards a solved session once, even across replicas sharing the
// store.
func (s *Service) grant(id string) {
	s.mu.Lock()
	ls, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("puzzle_reward_session_missing", zap.String("session_id", id))
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.rewarded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if s.deps.Store != nil {
		_, err := s.deps.Store.Update(ctx, id, func(rec *sessionstore.Record) error {
			if rec.Rewarded {
				return errAlreadyRewarded
			}
			rec.Rewarded = true
			return nil
		})
		switch {
		case errors.Is(err, errAlreadyRewarded):
			ls.rewarded = true
			return
		case err != nil && !errors.Is(err, sessionstore.ErrNotFound):
			s.logger.Warn("puzzle_reward_claim_failed", zap.String("session_id", id), zap.Error(err))
			return
		}
	}
	ls.rewarded = true

	if s.deps.Tracker == nil {
		return
	}
	def := ls.sess.Definition()
	moves := make([]string, 0)
	for _, m := range ls.sess.Log() {
		moves = append(moves, m.String())
	}
	award, err := s.deps.Tracker.Grant(ctx, rewards.Claim{
		SessionID: id,
		PlayerID:  ls.player,
		PuzzleID:  def.ID,
		Rating:    def.Rating,
		Hints:     ls.sess.Hints(),
		MovesUCI:  moves,
		StartedAt: ls.createdAt,
	})
	if err != nil {
		if !errors.Is(err, rewards.ErrDuplicateResult) {
			s.logger.Warn("puzzle_reward_failed", zap.String("session_id", id), zap.Error(err))
		}
		return
	}
	ls.award = &award
}

func (s *Service) solvedMessage(award *rewards.Award) string {
	parts := []string{s.text("solved.title", nil, "Puzzle solved!")}
	if award == nil {
		return parts[0]
	}
	data := map[string]any{"Tokens": award.Tokens, "Streak": award.Streak}
	if award.QuotaReached {
		parts = append(parts, s.text("solved.reward_quota", data, ""))
	} else {
		parts = append(parts, s.text("solved.reward", data, ""))
	}
	if m := award.Milestone; m != nil {
		parts = append(parts, s.text("solved.milestone", map[string]any{
			"Days":   m.Days,
			"Reward": s.text(m.RewardKey, nil, ""),
		}, ""))
	}
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func (s *Service) rewardDTO(award *rewards.Award) *puzzledto.Reward {
	if award == nil {
		return nil
	}
	out := &puzzledto.Reward{
		Tokens:       award.Tokens,
		Streak:       award.Streak,
		SolvedToday:  award.SolvedToday,
		QuotaReached: award.QuotaReached,
	}
	if m := award.Milestone; m != nil {
		out.Milestone = s.text(m.RewardKey, nil, "")
	}
	return out
}

func (s *Service) text(key string, data any, fallback string) string {
	return s.deps.Catalog.Text(key, data, fallback)
}
