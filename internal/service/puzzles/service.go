// Package puzzles runs puzzle sessions for the HTTP API: it loads puzzles,
// keeps live sessions, persists their snapshots and grants rewards.
package puzzles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/board"
	"github.com/park285/cheese-puzzle/internal/crosscheck"
	"github.com/park285/cheese-puzzle/internal/msgcat"
	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/internal/render"
	"github.com/park285/cheese-puzzle/internal/rewards"
	"github.com/park285/cheese-puzzle/internal/sessionstore"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

var (
	ErrSessionNotFound = errors.New("puzzle session not found")
	ErrPuzzleNotFound  = errors.New("puzzle not found")
	ErrInvalidMove     = errors.New("invalid puzzle move")
	ErrInvalidSource   = errors.New("unknown puzzle source")
)

const (
	SourceDaily   = "daily"
	SourceBuiltin = "builtin"

	persistTimeout   = 3 * time.Second
	recentResultsMax = 10
)

type Config struct {
	Source          string
	ReplyDelay      time.Duration
	HintLimit       int
	HintVisibility  time.Duration
	SessionTTL      time.Duration
	VerifySolutions bool
}

// Deps are the collaborators of a Service. Only Catalog may not be nil in
// production; every other dependency degrades to a local default.
type Deps struct {
	Feed      puzzle.Source
	Store     *sessionstore.Store
	Tracker   *rewards.Tracker
	Catalog   *msgcat.Catalog
	Renderer  render.Renderer
	Publish   func(puzzle.Event)
	Scheduler puzzle.Scheduler
	Clock     func() time.Time
}

type liveSession struct {
	sess      *puzzle.Session
	player    string
	createdAt time.Time

	mu       sync.Mutex
	touched  time.Time
	rewarded bool
	award    *rewards.Award
	// revision orders snapshots written by the request and timer paths.
	revision int64
}

type Service struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mu   sync.Mutex
	live map[string]*liveSession
}

func NewService(cfg Config, deps Deps, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", SourceDaily:
		cfg.Source = SourceDaily
	case SourceBuiltin:
		cfg.Source = SourceBuiltin
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, cfg.Source)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		live:   make(map[string]*liveSession),
	}, nil
}

// Start opens a session on the requested puzzle.
func (s *Service) Start(ctx context.Context, req puzzledto.StartRequest) (*puzzledto.SessionState, error) {
	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = s.cfg.Source
	}
	def, err := s.resolve(ctx, source, strings.TrimSpace(req.PuzzleID))
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := s.deps.Clock()
	ls := &liveSession{
		player:    strings.TrimSpace(req.Player),
		createdAt: now,
		touched:   now,
	}
	ls.sess = puzzle.NewSession(def, s.sessionOptions(id)...)

	s.mu.Lock()
	s.live[id] = ls
	s.mu.Unlock()

	s.persist(ctx, id, ls)
	s.logger.Info("puzzle_session_started",
		zap.String("session_id", id),
		zap.String("puzzle_id", def.ID),
		zap.String("source", def.Source),
		zap.String("player", ls.player),
	)

	st := s.stateOf(id, ls)
	if def.Source == puzzle.SourceFallback {
		st.Message = s.text("puzzle.fallback", nil, "The daily puzzle is unavailable.")
	}
	return st, nil
}

func (s *Service) sessionOptions(id string) []puzzle.Option {
	opts := []puzzle.Option{
		puzzle.WithID(id),
		puzzle.WithReplyDelay(s.cfg.ReplyDelay),
		puzzle.WithHintLimit(s.cfg.HintLimit),
		puzzle.WithHintVisibility(s.cfg.HintVisibility),
		puzzle.WithClock(s.deps.Clock),
		puzzle.WithListener(s.onEvent),
		puzzle.WithLogger(s.logger),
	}
	if s.deps.Scheduler != nil {
		opts = append(opts, puzzle.WithScheduler(s.deps.Scheduler))
	}
	return opts
}

// resolve picks the definition for source and id and runs the full-rules
// checks on it.
func (s *Service) resolve(ctx context.Context, source, id string) (puzzle.Definition, error) {
	var def puzzle.Definition
	switch source {
	case SourceBuiltin:
		d, err := puzzle.BuiltinSource{Day: s.dayIndex}.Definition(id)
		if err != nil {
			return puzzle.Definition{}, fmt.Errorf("%w: %s", ErrPuzzleNotFound, id)
		}
		def = d
	case SourceDaily:
		if d, ok := puzzle.BuiltinByID(id); ok && id != "" {
			def = d
		} else {
			def = puzzle.Load(ctx, s.deps.Feed, id, s.logger)
		}
	default:
		return puzzle.Definition{}, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	if def.Transcript != "" {
		if op, ok := crosscheck.ClassifyOpening(def.Transcript, def.InitialPly); ok && def.Opening == "" {
			def.Opening = op.String()
		}
		if diff := crosscheck.ReplayMismatch(def.Transcript, def.InitialPly); diff != "" {
			s.logger.Warn("puzzle_replay_mismatch", zap.String("puzzle_id", def.ID), zap.String("detail", diff))
		}
	}
	if s.cfg.VerifySolutions && !def.FreePlay() {
		if err := crosscheck.VerifySolution(def.FEN(), def.SolutionStrings()); err != nil {
			s.logger.Warn("puzzle_solution_rejected", zap.String("puzzle_id", def.ID), zap.Error(err))
			return puzzle.Default(), nil
		}
	}
	return def, nil
}

func (s *Service) dayIndex() int {
	return int(s.deps.Clock().UTC().Unix() / int64(24*time.Hour/time.Second))
}

// get returns the live session, restoring it from the store when this
// process has not seen it.
func (s *Service) get(ctx context.Context, id string) (*liveSession, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	ls, ok := s.live[id]
	s.mu.Unlock()
	if ok {
		ls.mu.Lock()
		ls.touched = s.deps.Clock()
		ls.mu.Unlock()
		return ls, nil
	}
	if s.deps.Store == nil || id == "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	rec, err := s.deps.Store.Load(ctx, id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	def, err := puzzle.FromRecord(rec.Puzzle)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", id, err)
	}
	sess, err := puzzle.RestoreSession(def, rec.Snapshot, s.sessionOptions(id)...)
	if err != nil {
		return nil, err
	}
	restored := &liveSession{
		sess:      sess,
		player:    rec.Player,
		createdAt: rec.CreatedAt,
		touched:   s.deps.Clock(),
		rewarded:  rec.Rewarded,
		revision:  rec.Revision,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[id]; ok {
		sess.Close()
		return existing, nil
	}
	s.live[id] = restored
	s.logger.Info("puzzle_session_restored", zap.String("session_id", id), zap.Int("step", rec.Snapshot.Step))
	return restored, nil
}

// State returns the current view of a session.
func (s *Service) State(ctx context.Context, id string) (*puzzledto.SessionState, error) {
	ls, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.stateOf(id, ls), nil
}

// Legal lists the destination squares of the piece on from.
func (s *Service) Legal(ctx context.Context, id, from string) (*puzzledto.LegalMoves, error) {
	sq, ok := board.ParseSquare(strings.ToLower(strings.TrimSpace(from)))
	if !ok {
		return nil, fmt.Errorf("%w: bad square %q", ErrInvalidMove, from)
	}
	ls, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	targets := ls.sess.Legal(sq).Strings()
	if targets == nil {
		targets = []string{}
	}
	return &puzzledto.LegalMoves{From: sq.String(), Targets: targets}, nil
}

// Move submits a UCI move.
func (s *Service) Move(ctx context.Context, id, uci string) (*puzzledto.MoveResult, error) {
	mv, err := board.ParseUCI(strings.ToLower(strings.TrimSpace(uci)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	ls, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := ls.sess.Submit(mv)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, id, ls)

	out := &puzzledto.MoveResult{
		Outcome: res.Outcome.String(),
		Move:    res.Move.String(),
	}
	data := map[string]any{"Move": res.Move.String()}
	switch res.Outcome {
	case puzzle.OutcomeRejected:
		out.Move = mv.String()
		out.Message = s.text("move.rejected", map[string]any{"Move": mv.String()}, "Illegal move.")
	case puzzle.OutcomeIncorrect:
		out.Message = s.text("move.incorrect", data, "Not the best move.")
	case puzzle.OutcomePlayed:
		out.Message = s.text("move.played", data, "Move played.")
	case puzzle.OutcomeCorrect:
		if res.Reply != nil {
			out.Reply = res.Reply.String()
			at := res.ReplyAt
			out.ReplyAt = &at
			data["Reply"] = res.Reply.String()
		}
		out.Message = s.text("move.correct", data, "Correct!")
	case puzzle.OutcomeSolved:
		award := ls.currentAward()
		out.Message = s.solvedMessage(award)
		out.Reward = s.rewardDTO(award)
	}
	out.State = s.stateOf(id, ls)
	return out, nil
}

// Hint reveals the next expected move.
func (s *Service) Hint(ctx context.Context, id string) (*puzzledto.SessionState, error) {
	ls, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := ls.sess.Hint()
	if err != nil {
		return nil, err
	}
	s.persist(ctx, id, ls)
	st := s.stateOf(id, ls)
	st.Message = s.text("hint.shown", map[string]any{
		"From": h.From.String(),
		"To":   h.To.String(),
		"Left": ls.sess.HintsLeft(),
	}, "Hint shown.")
	return st, nil
}

// Reset returns the session to its starting position.
func (s *Service) Reset(ctx context.Context, id string) (*puzzledto.SessionState, error) {
	ls, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	ls.sess.Reset()
	s.persist(ctx, id, ls)
	st := s.stateOf(id, ls)
	st.Message = s.text("session.reset", nil, "Puzzle reset.")
	return st, nil
}

// BoardPNG renders the current position from the solver's side.
func (s *Service) BoardPNG(ctx context.Context, id string) ([]byte, error) {
	ls, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	opts := render.Options{
		Flip:    ls.sess.Definition().SideToMove == board.Black,
		Caption: caption(ls.sess),
	}
	if last, ok := ls.sess.LastMove(); ok {
		opts.LastMove = &last
	}
	if h, ok := ls.sess.ActiveHint(); ok {
		opts.Hint = &board.Move{From: h.From, To: h.To}
	}
	return s.deps.Renderer.RenderPNG(ctx, ls.sess.Board(), opts)
}

func caption(sess *puzzle.Session) string {
	if sess.State() == puzzle.Solved {
		return "Solved"
	}
	if sess.SideToMove() == board.Black {
		return "Black to move"
	}
	return "White to move"
}

// Profile returns the reward profile and recent solves of player.
func (s *Service) Profile(ctx context.Context, player string) (*puzzledto.Profile, error) {
	player = strings.TrimSpace(player)
	out := &puzzledto.Profile{PlayerID: player, Recent: []puzzledto.ResultSummary{}}
	if s.deps.Tracker == nil || player == "" {
		return out, nil
	}
	p, err := s.deps.Tracker.Profile(ctx, player)
	if err != nil {
		return nil, err
	}
	out.Streak = p.Streak
	out.BestStreak = p.BestStreak
	out.Tokens = p.Tokens
	out.Solved = p.Solved
	out.SolvedToday = p.SolvedToday
	if !p.LastSolvedOn.IsZero() {
		out.LastSolvedOn = p.LastSolvedOn.Format("2006-01-02")
	}
	recent, err := s.deps.Tracker.Recent(ctx, player, recentResultsMax)
	if err != nil {
		return nil, err
	}
	for _, r := range recent {
		out.Recent = append(out.Recent, puzzledto.ResultSummary{
			PuzzleID:   r.PuzzleID,
			Rating:     r.Rating,
			Hints:      r.Hints,
			Tokens:     r.Tokens,
			SolvedAt:   r.SolvedAt,
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	return out, nil
}

// Prune drops live sessions idle for longer than the session TTL. Their
// stored snapshots stay available until Redis expires them.
func (s *Service) Prune() int {
	cutoff := s.deps.Clock().Add(-s.cfg.SessionTTL)
	var stale []*liveSession
	s.mu.Lock()
	for id, ls := range s.live {
		ls.mu.Lock()
		idle := ls.touched.Before(cutoff)
		ls.mu.Unlock()
		if idle {
			delete(s.live, id)
			stale = append(stale, ls)
		}
	}
	s.mu.Unlock()
	for _, ls := range stale {
		ls.sess.Close()
	}
	return len(stale)
}

// Live counts sessions held in memory.
func (s *Service) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Close stops every live session.
func (s *Service) Close() {
	s.mu.Lock()
	live := s.live
	s.live = make(map[string]*liveSession)
	s.mu.Unlock()
	for _, ls := range live {
		ls.sess.Close()
	}
}

// onEvent runs outside the session lock, on the request goroutine for moves
// and on the timer goroutine for scripted replies.
func (s *Service) onEvent(ev puzzle.Event) {
	if s.deps.Publish != nil {
		s.deps.Publish(ev)
	}
	switch ev.Kind {
	case puzzle.EventSolved:
		s.grant(ev.SessionID)
	case puzzle.EventReply:
		s.mu.Lock()
		ls, ok := s.live[ev.SessionID]
		s.mu.Unlock()
		if ok {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			s.persist(ctx, ev.SessionID, ls)
			cancel()
		}
	}
}

func (s *Service) persist(ctx context.Context, id string, ls *liveSession) {
	if s.deps.Store == nil {
		return
	}
	ls.mu.Lock()
	ls.revision++
	rec := &sessionstore.Record{
		ID:        id,
		Player:    ls.player,
		Puzzle:    ls.sess.Definition().Record(),
		Snapshot:  ls.sess.Snapshot(),
		Rewarded:  ls.rewarded,
		Revision:  ls.revision,
		CreatedAt: ls.createdAt,
	}
	ls.mu.Unlock()
	written, err := s.deps.Store.SaveLatest(ctx, rec)
	if err != nil {
		s.logger.Warn("puzzle_session_persist_failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	if !written {
		s.logger.Debug("puzzle_session_persist_stale", zap.String("session_id", id), zap.Int64("revision", rec.Revision))
	}
}

func (ls *liveSession) currentAward() *rewards.Award {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.award == nil {
		return nil
	}
	a := *ls.award
	return &a
}
