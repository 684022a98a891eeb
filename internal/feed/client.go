// Package feed fetches puzzles from a Lichess-compatible puzzle API.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-puzzle/internal/puzzle"
)

var ErrNotFound = errors.New("puzzle not found")

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
	userAgent      string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithDial replaces the network dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 8 * time.Second,
		retryMax:       3,
		userAgent:      "cheese-puzzle/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire format of /api/puzzle/daily and /api/puzzle/{id}
type puzzleResponse struct {
	Game struct {
		ID  string `json:"id"`
		PGN string `json:"pgn"`
	} `json:"game"`
	Puzzle struct {
		ID         string   `json:"id"`
		Rating     int      `json:"rating"`
		Plays      int      `json:"plays"`
		InitialPly int      `json:"initialPly"`
		Solution   []string `json:"solution"`
		Themes     []string `json:"themes"`
	} `json:"puzzle"`
}

func (r puzzleResponse) raw() puzzle.Raw {
	return puzzle.Raw{
		GameID:     r.Game.ID,
		PGN:        r.Game.PGN,
		PuzzleID:   r.Puzzle.ID,
		InitialPly: r.Puzzle.InitialPly,
		Solution:   r.Puzzle.Solution,
		Rating:     r.Puzzle.Rating,
		Plays:      r.Puzzle.Plays,
		Themes:     r.Puzzle.Themes,
	}
}

// Daily fetches the puzzle of the day.
func (c *Client) Daily(ctx context.Context) (puzzle.Raw, error) {
	var resp puzzleResponse
	if err := c.getJSON(ctx, "/api/puzzle/daily", &resp); err != nil {
		return puzzle.Raw{}, err
	}
	return resp.raw(), nil
}

// ByID fetches one puzzle.
func (c *Client) ByID(ctx context.Context, id string) (puzzle.Raw, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return puzzle.Raw{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	var resp puzzleResponse
	if err := c.getJSON(ctx, "/api/puzzle/"+url.PathEscape(id), &resp); err != nil {
		return puzzle.Raw{}, err
	}
	return resp.raw(), nil
}

// Fetch implements puzzle.Source.
func (c *Client) Fetch(ctx context.Context, id string) (puzzle.Raw, error) {
	if strings.TrimSpace(id) == "" {
		return c.Daily(ctx)
	}
	return c.ByID(ctx, id)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("puzzle api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
