package puzzle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/board"
)

var (
	ErrSolved       = errors.New("puzzle already solved")
	ErrReplyPending = errors.New("opponent reply pending")
	ErrHintLimit    = errors.New("hint limit reached")
	ErrNoHint       = errors.New("no hint available")
)

const (
	DefaultReplyDelay     = time.Second
	DefaultHintLimit      = 3
	DefaultHintVisibility = 3 * time.Second
)

// State is the session lifecycle.
type State int

const (
	AwaitingInput State = iota
	ReplyPending
	Solved
)

func (s State) String() string {
	switch s {
	case ReplyPending:
		return "reply_pending"
	case Solved:
		return "solved"
	default:
		return "awaiting_input"
	}
}

// Outcome classifies a submitted move.
type Outcome int

const (
	// OutcomeRejected: the move is not playable on the current board.
	OutcomeRejected Outcome = iota
	// OutcomeIncorrect: playable, but not the expected solution move. Nothing changes.
	OutcomeIncorrect
	// OutcomeCorrect: matched; the scripted reply has been scheduled.
	OutcomeCorrect
	// OutcomeSolved: matched the final solution move.
	OutcomeSolved
	// OutcomePlayed: accepted in free play.
	OutcomePlayed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomeCorrect:
		return "correct"
	case OutcomeSolved:
		return "solved"
	case OutcomePlayed:
		return "played"
	default:
		return "rejected"
	}
}

// Result describes what Submit did.
type Result struct {
	Outcome Outcome
	Move    board.Move
	// Reply is the scripted answer scheduled after OutcomeCorrect.
	Reply   *board.Move
	ReplyAt time.Time
	Step    int
}

// Hint reveals the expected next move for a limited time.
type Hint struct {
	From      board.Square
	To        board.Square
	ExpiresAt time.Time
}

// Timer is the cancellation handle of a scheduled reply.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on another goroutine. It must not call f
// before AfterFunc returns. The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// EventKind names session notifications.
type EventKind string

const (
	EventMove      EventKind = "move"
	EventIncorrect EventKind = "incorrect"
	EventReply     EventKind = "reply"
	EventSolved    EventKind = "solved"
	EventHint      EventKind = "hint"
	EventReset     EventKind = "reset"
)

// Event is delivered to the listener after the session lock is released.
type Event struct {
	Kind      EventKind
	SessionID string
	Move      board.Move
	Step      int
	State     State
	FEN       string
	At        time.Time
}

type options struct {
	id             string
	replyDelay     time.Duration
	hintLimit      int
	hintVisibility time.Duration
	scheduler      Scheduler
	clock          func() time.Time
	listener       func(Event)
	logger         *zap.Logger
}

// Option configures a Session.
type Option func(*options)

func WithID(id string) Option { return func(o *options) { o.id = id } }

func WithReplyDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.replyDelay = d
		}
	}
}

func WithHintLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.hintLimit = n
		}
	}
}

func WithHintVisibility(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.hintVisibility = d
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithListener registers fn for session events. fn runs on the goroutine that
// caused the event, which for replies is the timer goroutine.
func WithListener(fn func(Event)) Option { return func(o *options) { o.listener = fn } }

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Session walks one puzzle's solution. It is safe for concurrent use.
type Session struct {
	def  Definition
	opts options

	mu      sync.Mutex
	board   board.Board
	side    board.Color
	log     []board.Move
	step    int
	hints   int
	solved  bool
	pending bool
	gen     uint64
	timer   Timer
	hint    *Hint
}

// NewSession starts def from its initial position.
func NewSession(def Definition, opts ...Option) *Session {
	o := options{
		replyDelay:     DefaultReplyDelay,
		hintLimit:      DefaultHintLimit,
		hintVisibility: DefaultHintVisibility,
		scheduler:      realScheduler{},
		clock:          time.Now,
		logger:         zap.NewNop(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Session{
		def:   def,
		opts:  o,
		board: def.Board,
		side:  def.SideToMove,
	}
}

func (s *Session) ID() string { return s.opts.id }

// Definition returns the puzzle the session plays.
func (s *Session) Definition() Definition { return s.def }

// Submit plays mv for the side to move. Moves that cannot be played come back
// as OutcomeRejected and moves that deviate from the solution as
// OutcomeIncorrect; neither changes the session.
func (s *Session) Submit(mv board.Move) (Result, error) {
	s.mu.Lock()
	if s.solved {
		s.mu.Unlock()
		return Result{}, ErrSolved
	}
	if s.pending {
		s.mu.Unlock()
		return Result{}, ErrReplyPending
	}

	mv = mv.Normalize(s.board)
	res := Result{Move: mv, Step: s.step}
	if s.board.At(mv.From).Color != s.side || !board.IsLegal(s.board, mv.From, mv.To) || !mv.PromotionFits(s.board) {
		s.mu.Unlock()
		s.opts.logger.Debug("session_move_rejected", zap.String("session_id", s.opts.id), zap.String("move", mv.String()))
		return res, nil
	}

	if s.def.FreePlay() {
		s.play(mv)
		res.Outcome, res.Step = OutcomePlayed, s.step
		ev := s.eventLocked(EventMove, mv)
		s.mu.Unlock()
		s.emit(ev)
		return res, nil
	}

	if mv != s.def.Solution[s.step] {
		res.Outcome = OutcomeIncorrect
		ev := s.eventLocked(EventIncorrect, mv)
		s.mu.Unlock()
		s.opts.logger.Debug("session_move_incorrect",
			zap.String("session_id", s.opts.id),
			zap.String("move", mv.String()),
			zap.String("expected", s.def.Solution[res.Step].String()),
		)
		s.emit(ev)
		return res, nil
	}

	s.play(mv)
	s.step++
	res.Step = s.step
	if s.step >= len(s.def.Solution) {
		s.solved = true
		res.Outcome = OutcomeSolved
	} else {
		reply := s.def.Solution[s.step]
		res.Outcome = OutcomeCorrect
		res.Reply = &reply
		res.ReplyAt = s.opts.clock().Add(s.opts.replyDelay)
		s.scheduleReplyLocked()
	}
	events := []Event{s.eventLocked(EventMove, mv)}
	if s.solved {
		events = append(events, s.eventLocked(EventSolved, mv))
	}
	s.mu.Unlock()

	s.opts.logger.Debug("session_move",
		zap.String("session_id", s.opts.id),
		zap.String("move", mv.String()),
		zap.Int("step", res.Step),
		zap.String("outcome", res.Outcome.String()),
	)
	for _, ev := range events {
		s.emit(ev)
	}
	return res, nil
}

// play applies mv and records it. Caller holds mu.
func (s *Session) play(mv board.Move) {
	s.board = s.board.Play(mv)
	s.log = append(s.log, mv)
	s.side = s.side.Other()
	s.hint = nil
}

func (s *Session) scheduleReplyLocked() {
	s.pending = true
	gen := s.gen
	s.timer = s.opts.scheduler.AfterFunc(s.opts.replyDelay, func() { s.fireReply(gen) })
}

// fireReply plays the scripted reply unless the session moved on since it
// was scheduled.
func (s *Session) fireReply(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.pending || s.step >= len(s.def.Solution) {
		s.mu.Unlock()
		return
	}
	reply := s.def.Solution[s.step]
	s.play(reply)
	s.step++
	s.pending = false
	s.timer = nil
	events := []Event{s.eventLocked(EventReply, reply)}
	if s.step >= len(s.def.Solution) {
		s.solved = true
		events = append(events, s.eventLocked(EventSolved, reply))
	}
	s.mu.Unlock()

	s.opts.logger.Debug("session_reply",
		zap.String("session_id", s.opts.id),
		zap.String("move", reply.String()),
		zap.Bool("solved", len(events) > 1),
	)
	for _, ev := range events {
		s.emit(ev)
	}
}

// Hint reveals the expected move. It never changes the board.
func (s *Session) Hint() (Hint, error) {
	s.mu.Lock()
	if s.solved {
		s.mu.Unlock()
		return Hint{}, ErrSolved
	}
	if s.hints >= s.opts.hintLimit {
		s.mu.Unlock()
		return Hint{}, ErrHintLimit
	}
	if s.pending || s.step >= len(s.def.Solution) {
		s.mu.Unlock()
		return Hint{}, ErrNoHint
	}
	next := s.def.Solution[s.step]
	h := Hint{From: next.From, To: next.To, ExpiresAt: s.opts.clock().Add(s.opts.hintVisibility)}
	s.hints++
	s.hint = &h
	ev := s.eventLocked(EventHint, next)
	s.mu.Unlock()
	s.emit(ev)
	return h, nil
}

// ActiveHint returns the last hint while it is still visible.
func (s *Session) ActiveHint() (Hint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hint == nil || !s.opts.clock().Before(s.hint.ExpiresAt) {
		return Hint{}, false
	}
	return *s.hint, true
}

// Reset restores the starting position. A reply still in flight is dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.board = s.def.Board
	s.side = s.def.SideToMove
	s.log = nil
	s.step = 0
	s.hints = 0
	s.solved = false
	s.pending = false
	s.hint = nil
	ev := s.eventLocked(EventReset, board.Move{From: board.NoSquare, To: board.NoSquare})
	s.mu.Unlock()
	s.emit(ev)
}

// Close stops a pending reply without touching the position.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Legal lists the destinations of the piece on from.
func (s *Session) Legal(from board.Square) board.SquareSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return board.LegalDestinations(s.board, from)
}

func (s *Session) Board() board.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

func (s *Session) SideToMove() board.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.side
}

func (s *Session) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return board.EncodeFEN(s.board, s.side)
}

func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Hints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hints
}

// HintsLeft is the number of hints still available.
func (s *Session) HintsLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if left := s.opts.hintLimit - s.hints; left > 0 {
		return left
	}
	return 0
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.solved:
		return Solved
	case s.pending:
		return ReplyPending
	default:
		return AwaitingInput
	}
}

// Log returns a copy of the moves played so far, replies included.
func (s *Session) Log() []board.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.Move(nil), s.log...)
}

// LastMove returns the most recent move, if any.
func (s *Session) LastMove() (board.Move, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.log) == 0 {
		return board.Move{}, false
	}
	return s.log[len(s.log)-1], true
}

func (s *Session) eventLocked(kind EventKind, mv board.Move) Event {
	return Event{
		Kind:      kind,
		SessionID: s.opts.id,
		Move:      mv,
		Step:      s.step,
		State:     s.stateLocked(),
		FEN:       board.EncodeFEN(s.board, s.side),
		At:        s.opts.clock(),
	}
}

func (s *Session) emit(ev Event) {
	if s.opts.listener != nil {
		s.opts.listener(ev)
	}
}

// Snapshot is the serialisable state of a session.
type Snapshot struct {
	FEN          string    `json:"fen"`
	Log          []string  `json:"log"`
	Step         int       `json:"step"`
	Hints        int       `json:"hints"`
	Solved       bool      `json:"solved"`
	ReplyPending bool      `json:"reply_pending"`
	HintFrom     string    `json:"hint_from,omitempty"`
	HintTo       string    `json:"hint_to,omitempty"`
	HintExpires  time.Time `json:"hint_expires,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		FEN:          board.EncodeFEN(s.board, s.side),
		Log:          make([]string, len(s.log)),
		Step:         s.step,
		Hints:        s.hints,
		Solved:       s.solved,
		ReplyPending: s.pending,
	}
	for i, m := range s.log {
		snap.Log[i] = m.String()
	}
	if s.hint != nil {
		snap.HintFrom, snap.HintTo, snap.HintExpires = s.hint.From.String(), s.hint.To.String(), s.hint.ExpiresAt
	}
	return snap
}

// RestoreSession rebuilds a session from a snapshot of def. A reply that was
// pending when the snapshot was taken is scheduled again with the full delay.
func RestoreSession(def Definition, snap Snapshot, opts ...Option) (*Session, error) {
	b, side, err := board.DecodeFEN(snap.FEN)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if snap.Step < 0 || snap.Step > len(def.Solution) {
		return nil, fmt.Errorf("restore session: step %d out of range", snap.Step)
	}
	log := make([]board.Move, 0, len(snap.Log))
	for _, raw := range snap.Log {
		m, err := board.ParseUCI(raw)
		if err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
		log = append(log, m)
	}

	s := NewSession(def, opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board, s.side = b, side
	s.log = log
	s.step = snap.Step
	s.hints = snap.Hints
	s.solved = snap.Solved
	if from, ok := board.ParseSquare(snap.HintFrom); ok {
		if to, ok := board.ParseSquare(snap.HintTo); ok {
			s.hint = &Hint{From: from, To: to, ExpiresAt: snap.HintExpires}
		}
	}
	if snap.ReplyPending && !s.solved && s.step < len(def.Solution) {
		s.scheduleReplyLocked()
	}
	return s, nil
}
