// Package rewards turns solved puzzles into streak days and tokens.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/domain"
)

var ErrDuplicateResult = errors.New("puzzle result already recorded")

const (
	minTokens   = 10
	hintDivisor = 4
)

// Milestone is a streak length that unlocks a reward. RewardKey points into
// the message catalog.
type Milestone struct {
	Days      int
	RewardKey string
}

var milestones = []Milestone{
	{Days: 7, RewardKey: "milestones.d7"},
	{Days: 30, RewardKey: "milestones.d30"},
	{Days: 90, RewardKey: "milestones.d90"},
}

// Milestones lists the streak milestones in ascending order.
func Milestones() []Milestone { return append([]Milestone(nil), milestones...) }

// Award is what one solve earned.
type Award struct {
	Tokens       int
	Streak       int
	SolvedToday  int
	QuotaReached bool
	Milestone    *Milestone
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TokensFor is the base reward for a puzzle of rating, reduced by a quarter
// of the base per hint taken.
func TokensFor(rating, hints int) int {
	base := rating / 10
	if base < minTokens {
		base = minTokens
	}
	if hints < 0 {
		hints = 0
	}
	if hints >= hintDivisor {
		return 0
	}
	return base - base*hints/hintDivisor
}

// Compute applies one solve at now to prev and returns the award together
// with the updated profile. Solves beyond quota in a day keep the streak
// alive but earn nothing.
func Compute(prev domain.PuzzleProfile, rating, hints, quota int, now time.Time) (Award, domain.PuzzleProfile) {
	next := prev
	today := Day(now)
	last := Day(prev.LastSolvedOn)

	switch {
	case !prev.LastSolvedOn.IsZero() && last.Equal(today):
		next.SolvedToday = prev.SolvedToday + 1
	case !prev.LastSolvedOn.IsZero() && last.AddDate(0, 0, 1).Equal(today):
		next.Streak = prev.Streak + 1
		next.SolvedToday = 1
	default:
		next.Streak = 1
		next.SolvedToday = 1
	}
	if next.Streak < 1 {
		next.Streak = 1
	}
	if next.Streak > next.BestStreak {
		next.BestStreak = next.Streak
	}
	next.LastSolvedOn = today
	next.Solved = prev.Solved + 1

	award := Award{Streak: next.Streak, SolvedToday: next.SolvedToday}
	if quota > 0 && next.SolvedToday > quota {
		award.QuotaReached = true
	} else {
		award.Tokens = TokensFor(rating, hints)
	}
	next.Tokens = prev.Tokens + award.Tokens

	if next.Streak != prev.Streak {
		for i := range milestones {
			if milestones[i].Days == next.Streak {
				m := milestones[i]
				award.Milestone = &m
			}
		}
	}
	return award, next
}

// Ledger stores profiles and solved results.
type Ledger interface {
	Profile(ctx context.Context, playerID string) (*domain.PuzzleProfile, error)
	// Record stores result and profile together. A second result for the
	// same session yields ErrDuplicateResult and leaves the profile alone.
	Record(ctx context.Context, result *domain.PuzzleResult, profile *domain.PuzzleProfile) error
	Recent(ctx context.Context, playerID string, limit int) ([]*domain.PuzzleResult, error)
}

// Claim describes a solve to be rewarded.
type Claim struct {
	SessionID string
	PlayerID  string
	PuzzleID  string
	Rating    int
	Hints     int
	MovesUCI  []string
	StartedAt time.Time
}

// Tracker grants awards against a ledger.
type Tracker struct {
	ledger Ledger
	quota  int
	now    func() time.Time
	logger *zap.Logger
}

func NewTracker(ledger Ledger, quota int, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{ledger: ledger, quota: quota, now: time.Now, logger: logger}
}

// SetClock overrides the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Grant records the solve and returns its award. Anonymous claims are
// scored but not stored.
func (t *Tracker) Grant(ctx context.Context, c Claim) (Award, error) {
	player := strings.TrimSpace(c.PlayerID)
	now := t.now()
	if player == "" {
		award, _ := Compute(domain.PuzzleProfile{}, c.Rating, c.Hints, t.quota, now)
		return award, nil
	}

	prev, err := t.ledger.Profile(ctx, player)
	if err != nil {
		return Award{}, fmt.Errorf("load profile: %w", err)
	}
	if prev == nil {
		prev = &domain.PuzzleProfile{PlayerID: player, CreatedAt: now}
	}
	award, next := Compute(*prev, c.Rating, c.Hints, t.quota, now)
	next.PlayerID = player
	next.UpdatedAt = now

	res := &domain.PuzzleResult{
		SessionID: c.SessionID,
		PlayerID:  player,
		PuzzleID:  c.PuzzleID,
		Rating:    c.Rating,
		Hints:     c.Hints,
		MovesUCI:  append([]string(nil), c.MovesUCI...),
		Tokens:    award.Tokens,
		StartedAt: c.StartedAt,
		SolvedAt:  now,
	}
	if !c.StartedAt.IsZero() {
		res.Duration = now.Sub(c.StartedAt)
	}
	if err := t.ledger.Record(ctx, res, &next); err != nil {
		return Award{}, err
	}
	t.logger.Info("puzzle_reward",
		zap.String("player_id", player),
		zap.String("puzzle_id", c.PuzzleID),
		zap.Int("tokens", award.Tokens),
		zap.Int("streak", award.Streak),
		zap.Bool("quota_reached", award.QuotaReached),
	)
	return award, nil
}

// Profile returns the stored profile or an empty one.
func (t *Tracker) Profile(ctx context.Context, playerID string) (domain.PuzzleProfile, error) {
	p, err := t.ledger.Profile(ctx, strings.TrimSpace(playerID))
	if err != nil {
		return domain.PuzzleProfile{}, err
	}
	if p == nil {
		return domain.PuzzleProfile{PlayerID: playerID}, nil
	}
	return *p, nil
}

// Recent lists the player's latest solves.
func (t *Tracker) Recent(ctx context.Context, playerID string, limit int) ([]*domain.PuzzleResult, error) {
	return t.ledger.Recent(ctx, strings.TrimSpace(playerID), limit)
}
