package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-puzzle/internal/crosscheck"
	"github.com/park285/cheese-puzzle/internal/events"
	"github.com/park285/cheese-puzzle/internal/feed"
	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

func main() {
	feedURL := os.Getenv("PUZZLE_FEED_URL")
	puzzleID := strings.TrimSpace(os.Getenv("PUZZLE_ID"))
	eventsURL := os.Getenv("PUZZLE_EVENTS_URL")
	sessionID := os.Getenv("PUZZLE_SESSION")

	if feedURL == "" {
		feedURL = "https://lichess.org"
	}

	client := feed.NewClient(feedURL, feed.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	raw, err := client.Fetch(ctx, puzzleID)
	if err != nil {
		log.Printf("fetch error: %v", err)
	} else {
		report(raw)
	}

	if eventsURL == "" || sessionID == "" {
		log.Println("PUZZLE_EVENTS_URL or PUZZLE_SESSION not set; skipping events check")
		return
	}

	w, err := events.NewWatcher(eventsURL, sessionID, 5, time.Second, nil)
	if err != nil {
		log.Fatalf("events url: %v", err)
	}
	// Observe for a short window
	wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer wcancel()
	err = w.Run(wctx, func(ev puzzledto.Event) {
		fmt.Printf("event type=%s step=%d state=%s move=%s fen=%s\n", ev.Type, ev.Step, ev.State, ev.Move, ev.FEN)
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("events error: %v", err)
	}
}

func report(raw puzzle.Raw) {
	def, err := puzzle.FromRaw(raw)
	if err != nil {
		log.Printf("puzzle %s rejected: %v", raw.PuzzleID, err)
		return
	}
	fmt.Printf("puzzle   %s (rating %d, %d plays)\n", def.ID, def.Rating, def.Plays)
	fmt.Printf("fen      %s\n", def.FEN())
	fmt.Printf("solution %s\n", strings.Join(def.SolutionStrings(), " "))
	if def.GameURL != "" {
		fmt.Printf("game     %s\n", def.GameURL)
	}

	if op, ok := crosscheck.ClassifyOpening(raw.PGN, raw.InitialPly); ok {
		fmt.Printf("opening  %s\n", op)
	}
	if diff := crosscheck.ReplayMismatch(raw.PGN, raw.InitialPly); diff != "" {
		fmt.Printf("replay   MISMATCH %s\n", diff)
	} else {
		fmt.Println("replay   ok")
	}
	if err := crosscheck.VerifySolution(def.FEN(), def.SolutionStrings()); err != nil {
		fmt.Printf("verify   FAIL %v\n", err)
	} else {
		fmt.Println("verify   ok")
	}
}
