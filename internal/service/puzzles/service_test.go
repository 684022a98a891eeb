package puzzles

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-puzzle/internal/msgcat"
	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/internal/rewards"
	"github.com/park285/cheese-puzzle/internal/sessionstore"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

type manualTimer struct {
	f    func()
	done bool
}

func (t *manualTimer) Stop() bool {
	was := !t.done
	t.done = true
	return was
}

// manualScheduler collects reply callbacks until the test runs them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) puzzle.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.done {
			t.done = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type harness struct {
	svc     *Service
	sched   *manualScheduler
	store   *sessionstore.Store
	tracker *rewards.Tracker
	now     time.Time

	mu     sync.Mutex
	events []puzzle.Event
}

func (h *harness) kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, string(ev.Kind))
	}
	return out
}

func newHarness(t *testing.T, cfg Config, feed puzzle.Source) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := sessionstore.NewWithClient(rdb, time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := &harness{sched: &manualScheduler{}, store: store, now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	h.tracker = rewards.NewTracker(rewards.NewMemoryLedger(), 3, nil)
	h.tracker.SetClock(clock)

	svc, err := NewService(cfg, Deps{
		Feed:      feed,
		Store:     store,
		Tracker:   h.tracker,
		Catalog:   cat,
		Scheduler: h.sched,
		Clock:     clock,
		Publish: func(ev puzzle.Event) {
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	h.svc = svc
	return h
}

func builtinConfig() Config {
	return Config{Source: SourceBuiltin, HintLimit: 3, HintVisibility: 3 * time.Second, ReplyDelay: time.Second}
}

func start(t *testing.T, h *harness, id, player string) *puzzledto.SessionState {
	t.Helper()
	st, err := h.svc.Start(context.Background(), puzzledto.StartRequest{PuzzleID: id, Player: player})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return st
}

func TestStartBuiltin(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	st := start(t, h, "00sHx", "alice")

	if st.PuzzleID != "00sHx" || st.Source != puzzle.SourceBuiltin || st.SideToMove != "black" {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.State != "awaiting_input" || st.SolutionLength != 4 || st.HintsLeft != 3 {
		t.Fatalf("unexpected progress %+v", st)
	}
	rec, err := h.store.Load(context.Background(), st.SessionID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if rec.Player != "alice" || rec.Puzzle.ID != "00sHx" {
		t.Fatalf("stored record %+v", rec)
	}
}

func TestStartUnknownBuiltin(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	_, err := h.svc.Start(context.Background(), puzzledto.StartRequest{PuzzleID: "nope"})
	if !errors.Is(err, ErrPuzzleNotFound) {
		t.Fatalf("err=%v want ErrPuzzleNotFound", err)
	}
	_, err = h.svc.Start(context.Background(), puzzledto.StartRequest{Source: "weekly"})
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("err=%v want ErrInvalidSource", err)
	}
}

func TestSolveAndReward(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sHx", "alice")
	id := st.SessionID

	res, err := h.svc.Move(ctx, id, "e8d7")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.Outcome != "correct" || res.Reply != "a2e6" || res.ReplyAt == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Message, "a2e6") {
		t.Fatalf("message %q should name the reply", res.Message)
	}
	if _, err := h.svc.Move(ctx, id, "d7d8"); !errors.Is(err, puzzle.ErrReplyPending) {
		t.Fatalf("move during reply err=%v", err)
	}
	h.sched.fire()

	if _, err := h.svc.Move(ctx, id, "d7d8"); err != nil {
		t.Fatalf("Move 2: %v", err)
	}
	h.sched.fire()

	final, err := h.svc.State(ctx, id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if final.State != "solved" || final.Step != 4 || final.LastMove != "f7f8" {
		t.Fatalf("final state %+v", final)
	}

	prof, err := h.svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if prof.Streak != 1 || prof.Solved != 1 || prof.Tokens != rewards.TokensFor(1760, 0) {
		t.Fatalf("profile %+v", prof)
	}
	if len(prof.Recent) != 1 || prof.Recent[0].PuzzleID != "00sHx" {
		t.Fatalf("recent %+v", prof.Recent)
	}

	rec, err := h.store.Load(ctx, id)
	if err != nil || !rec.Rewarded || !rec.Snapshot.Solved {
		t.Fatalf("stored record %+v err=%v", rec, err)
	}

	kinds := strings.Join(h.kinds(), ",")
	if kinds != "move,reply,move,reply,solved" {
		t.Fatalf("events %s", kinds)
	}
}

func TestSolvedOnUserMoveCarriesReward(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sHx", "bob")

	// Trim the line so the user's second move ends it.
	h.svc.mu.Lock()
	ls := h.svc.live[st.SessionID]
	h.svc.mu.Unlock()
	def := ls.sess.Definition()
	def.Solution = def.Solution[:3]
	ls.sess = puzzle.NewSession(def, h.svc.sessionOptions(st.SessionID)...)

	if _, err := h.svc.Move(ctx, st.SessionID, "e8d7"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	h.sched.fire()
	res, err := h.svc.Move(ctx, st.SessionID, "d7d8")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.Outcome != "solved" || res.Reward == nil || res.Reward.Tokens != 176 {
		t.Fatalf("result %+v reward %+v", res, res.Reward)
	}
	if !strings.Contains(res.Message, "solved") || !strings.Contains(res.Message, "+176") {
		t.Fatalf("message %q", res.Message)
	}
}

func TestMoveErrors(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sHx", "")

	if _, err := h.svc.Move(ctx, st.SessionID, "zz"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("bad uci err=%v", err)
	}
	if _, err := h.svc.Move(ctx, "missing", "e8d7"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session err=%v", err)
	}
	res, err := h.svc.Move(ctx, st.SessionID, "e8e6")
	if err != nil || res.Outcome != "rejected" {
		t.Fatalf("illegal move res=%+v err=%v", res, err)
	}
	res, err = h.svc.Move(ctx, st.SessionID, "e8f8")
	if err != nil || res.Outcome != "incorrect" || res.State.Step != 0 {
		t.Fatalf("wrong move res=%+v err=%v", res, err)
	}
}

func TestLegal(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sHx", "")
	lm, err := h.svc.Legal(ctx, st.SessionID, "E8")
	if err != nil {
		t.Fatalf("Legal: %v", err)
	}
	if lm.From != "e8" || len(lm.Targets) == 0 {
		t.Fatalf("legal %+v", lm)
	}
	empty, err := h.svc.Legal(ctx, st.SessionID, "d5")
	if err != nil || len(empty.Targets) != 0 {
		t.Fatalf("empty square targets %+v err=%v", empty, err)
	}
	if _, err := h.svc.Legal(ctx, st.SessionID, "z9"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("bad square err=%v", err)
	}
}

func TestHintAndReset(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sHx", "")

	hs, err := h.svc.Hint(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if hs.Hint == nil || hs.Hint.From != "e8" || hs.Hint.To != "d7" || hs.HintsLeft != 2 {
		t.Fatalf("hint state %+v", hs)
	}
	if !strings.Contains(hs.Message, "e8") {
		t.Fatalf("hint message %q", hs.Message)
	}

	h.now = h.now.Add(4 * time.Second)
	later, _ := h.svc.State(ctx, st.SessionID)
	if later.Hint != nil {
		t.Fatalf("hint should have expired")
	}

	if _, err := h.svc.Move(ctx, st.SessionID, "e8d7"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	rs, err := h.svc.Reset(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if rs.Step != 0 || len(rs.Moves) != 0 || rs.State != "awaiting_input" || rs.Hints != 0 {
		t.Fatalf("reset state %+v", rs)
	}
	h.sched.fire()
	after, _ := h.svc.State(ctx, st.SessionID)
	if after.Step != 0 {
		t.Fatalf("stale reply applied after reset: %+v", after)
	}
}

func TestRestoreFromStore(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sJ9", "carol")
	if _, err := h.svc.Move(ctx, st.SessionID, "e3g3"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	h.sched.fire()

	other, err := NewService(builtinConfig(), Deps{Store: h.store, Scheduler: &manualScheduler{}}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(other.Close)

	got, err := other.State(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("State on second replica: %v", err)
	}
	if got.Step != 2 || got.LastMove != "e8e1" || got.Player != "carol" || got.SideToMove != "white" {
		t.Fatalf("restored state %+v", got)
	}
	if other.Live() != 1 {
		t.Fatalf("restored session should be cached")
	}
}

func TestLateMoveSnapshotDoesNotOverwriteReply(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	ctx := context.Background()
	st := start(t, h, "00sJ9", "erin")
	if _, err := h.svc.Move(ctx, st.SessionID, "e3g3"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	afterMove, err := h.store.Load(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h.sched.fire()
	afterReply, err := h.store.Load(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if afterReply.Revision <= afterMove.Revision || afterReply.Snapshot.Step != 2 {
		t.Fatalf("reply snapshot rev %d step %d, move rev %d", afterReply.Revision, afterReply.Snapshot.Step, afterMove.Revision)
	}

	// A request-path write that lands after the reply was persisted.
	if written, err := h.store.SaveLatest(ctx, afterMove); err != nil || written {
		t.Fatalf("late move snapshot written = %v, %v", written, err)
	}
	other, err := NewService(builtinConfig(), Deps{Store: h.store, Scheduler: &manualScheduler{}}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(other.Close)
	got, err := other.State(ctx, st.SessionID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got.Step != 2 || got.LastMove != "e8e1" {
		t.Fatalf("restored state %+v, want the post-reply snapshot", got)
	}
}

func TestDailyFeedAndFallback(t *testing.T) {
	feed := puzzle.SourceFunc(func(_ context.Context, id string) (puzzle.Raw, error) {
		if id == "broken" {
			return puzzle.Raw{}, errors.New("feed down")
		}
		return puzzle.Raw{
			GameID:     "abcd1234",
			PGN:        "1. e4 e5 2. Nf3 Nc6",
			PuzzleID:   "p1",
			InitialPly: 3,
			Solution:   []string{"b8c6", "f1b5"},
			Rating:     1500,
		}, nil
	})
	h := newHarness(t, Config{Source: SourceDaily, HintLimit: 3}, feed)

	st := start(t, h, "", "")
	if st.PuzzleID != "p1" || st.Source != puzzle.SourceFeed || st.SideToMove != "black" {
		t.Fatalf("daily state %+v", st)
	}

	fb := start(t, h, "broken", "")
	if fb.Source != puzzle.SourceFallback || fb.SolutionLength != 0 || fb.Message == "" {
		t.Fatalf("fallback state %+v", fb)
	}
	res, err := h.svc.Move(context.Background(), fb.SessionID, "e8d7")
	if err != nil || res.Outcome != "played" {
		t.Fatalf("free play res=%+v err=%v", res, err)
	}
}

func TestBoardPNG(t *testing.T) {
	h := newHarness(t, builtinConfig(), nil)
	st := start(t, h, "00sHx", "")
	data, err := h.svc.BoardPNG(context.Background(), st.SessionID)
	if err != nil {
		t.Fatalf("BoardPNG: %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatalf("not a png")
	}
}

func TestPrune(t *testing.T) {
	cfg := builtinConfig()
	cfg.SessionTTL = time.Minute
	h := newHarness(t, cfg, nil)
	st := start(t, h, "00sHx", "")
	if n := h.svc.Prune(); n != 0 {
		t.Fatalf("pruned %d fresh sessions", n)
	}
	h.now = h.now.Add(2 * time.Minute)
	if n := h.svc.Prune(); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	// The snapshot is still in Redis, so the session comes back.
	if _, err := h.svc.State(context.Background(), st.SessionID); err != nil {
		t.Fatalf("State after prune: %v", err)
	}
}

func TestNewServiceRejectsSource(t *testing.T) {
	if _, err := NewService(Config{Source: "weekly"}, Deps{}, nil); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("err=%v", err)
	}
}
