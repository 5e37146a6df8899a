// Package replay drives the WebSocket commands recorded in a DevTools log
// against a live endpoint and reports how each one was answered.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/danmuck/syncws/internal/logreplay"
	"github.com/danmuck/syncws/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrDisconnected  = errors.New("replay: session disconnected")
	ErrCommandFailed = errors.New("replay: command failed")
)

const (
	StatusOK            = "ok"
	StatusProtocolError = "error"
	StatusTimeout       = "timeout"
	StatusSendFailed    = "send_failed"
	StatusInvalid       = "invalid"
	StatusAborted       = "aborted"
)

// Sender is the blocking session surface the runner needs.
type Sender interface {
	Send(message string) bool
	ReceiveNextMessage(deadline time.Time) (string, session.StatusCode)
}

// Source yields parsed log records.
type Source interface {
	Next(protocol logreplay.Protocol) (*logreplay.Entry, error)
}

type Config struct {
	ResponseTimeout time.Duration
	// MaxInFlight bounds commands sent before their responses arrive.
	MaxInFlight int
	StopOnError bool
}

func DefaultConfig() Config {
	return Config{
		ResponseTimeout: 5 * time.Second,
		MaxInFlight:     1,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = def.ResponseTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = def.MaxInFlight
	}
	return c
}

type Result struct {
	Seq       int     `json:"seq" yaml:"seq"`
	ID        int     `json:"id" yaml:"id"`
	Method    string  `json:"method" yaml:"method"`
	Status    string  `json:"status" yaml:"status"`
	LatencyMS float64 `json:"latency_ms" yaml:"latency_ms"`
	Events    int     `json:"events,omitempty" yaml:"events,omitempty"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type Summary struct {
	Commands   int      `json:"commands" yaml:"commands"`
	Succeeded  int      `json:"succeeded" yaml:"succeeded"`
	Failed     int      `json:"failed" yaml:"failed"`
	Events     int      `json:"events" yaml:"events"`
	Unmatched  int      `json:"unmatched" yaml:"unmatched"`
	Skipped    int      `json:"skipped" yaml:"skipped"`
	DurationMS float64  `json:"duration_ms" yaml:"duration_ms"`
	Results    []Result `json:"results" yaml:"results"`
}

type Runner struct {
	sender Sender
	cfg    Config
}

func NewRunner(sender Sender, cfg Config) *Runner {
	return &Runner{sender: sender, cfg: cfg.WithDefaults()}
}

type command struct {
	ID        int             `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type envelope struct {
	ID     *int   `json:"id"`
	Method string `json:"method"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// run holds the state of one Run call.
type run struct {
	*Runner
	pending   *PendingCommands
	results   []Result
	summary   Summary
	exhausted bool
	seq       int
}

// Run replays every WebSocket command src yields. The summary is returned
// even when err is non-nil.
func (r *Runner) Run(ctx context.Context, src Source) (Summary, error) {
	start := time.Now()
	st := &run{Runner: r, pending: NewPendingCommands()}
	err := st.loop(ctx, src)
	if err != nil {
		st.abortPending(err)
	}
	return st.finish(start), err
}

func (st *run) loop(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.fill(src); err != nil {
			return err
		}
		oldest, ok := st.pending.Earliest()
		if !ok {
			if st.exhausted {
				return nil
			}
			continue
		}

		raw, status := st.sender.ReceiveNextMessage(oldest.Deadline)
		switch status {
		case session.StatusTimeout:
			if cmd, ok := st.pending.Resolve(oldest.ID); ok {
				st.record(cmd, StatusTimeout, "no response before deadline")
			}
		case session.StatusDisconnected:
			return ErrDisconnected
		default:
			st.dispatch(raw, oldest.ID)
		}
		if err := st.checkFailure(); err != nil {
			return err
		}
	}
}

// fill sends commands until the in-flight window is full or src runs dry.
func (st *run) fill(src Source) error {
	for !st.exhausted && st.pending.Len() < st.cfg.MaxInFlight {
		entry, err := src.Next(logreplay.ProtocolWebSocket)
		if errors.Is(err, io.EOF) {
			st.exhausted = true
			return nil
		}
		if err != nil {
			var perr *logreplay.ParseError
			if errors.As(err, &perr) && !st.cfg.StopOnError {
				log.Warn().Err(err).Msg("replay: skipping malformed record")
				st.summary.Skipped++
				continue
			}
			return err
		}
		if entry.EventType != logreplay.EventRequest {
			continue
		}

		st.seq++
		cmd := PendingCommand{Seq: st.seq, ID: entry.ID, Method: entry.Name}
		msg, err := encodeCommand(entry)
		if err != nil {
			st.record(cmd, StatusInvalid, err.Error())
			if err := st.checkFailure(); err != nil {
				return err
			}
			continue
		}

		cmd.SentAt = time.Now()
		cmd.Deadline = cmd.SentAt.Add(st.cfg.ResponseTimeout)
		if !st.sender.Send(msg) {
			st.record(cmd, StatusSendFailed, "transport rejected message")
			if err := st.checkFailure(); err != nil {
				return err
			}
			continue
		}
		log.Debug().Int("id", cmd.ID).Str("method", cmd.Method).Msg("replay: command sent")
		st.pending.Track(cmd)
	}
	return nil
}

func (st *run) dispatch(raw string, oldestID int) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.Debug().Err(err).Msg("replay: ignoring non-json message")
		st.summary.Unmatched++
		return
	}
	if env.ID == nil {
		if env.Method == "" {
			st.summary.Unmatched++
			return
		}
		st.summary.Events++
		st.pending.MarkEvent(oldestID)
		return
	}
	cmd, ok := st.pending.Resolve(*env.ID)
	if !ok {
		log.Debug().Int("id", *env.ID).Msg("replay: response for unknown command")
		st.summary.Unmatched++
		return
	}
	if env.Error != nil {
		st.record(cmd, StatusProtocolError, fmt.Sprintf("%d: %s", env.Error.Code, env.Error.Message))
		return
	}
	st.record(cmd, StatusOK, "")
}

func (st *run) record(cmd PendingCommand, status, msg string) {
	res := Result{
		Seq:    cmd.Seq,
		ID:     cmd.ID,
		Method: cmd.Method,
		Status: status,
		Events: cmd.Events,
		Error:  msg,
	}
	if !cmd.SentAt.IsZero() {
		res.LatencyMS = float64(time.Since(cmd.SentAt)) / float64(time.Millisecond)
	}
	if status != StatusOK {
		log.Warn().Int("id", cmd.ID).Str("method", cmd.Method).Str("status", status).Str("error", msg).Msg("replay: command failed")
	}
	st.results = append(st.results, res)
}

func (st *run) checkFailure() error {
	if !st.cfg.StopOnError || len(st.results) == 0 {
		return nil
	}
	last := st.results[len(st.results)-1]
	if last.Status == StatusOK {
		return nil
	}
	return fmt.Errorf("%w: %s (id=%d): %s", ErrCommandFailed, last.Method, last.ID, last.Status)
}

func (st *run) abortPending(cause error) {
	for _, cmd := range st.pending.List() {
		st.pending.Resolve(cmd.ID)
		st.record(cmd, StatusAborted, cause.Error())
	}
}

func (st *run) finish(start time.Time) Summary {
	sort.Slice(st.results, func(i, j int) bool {
		return st.results[i].Seq < st.results[j].Seq
	})
	s := st.summary
	s.Results = st.results
	s.Commands = len(st.results)
	for _, res := range st.results {
		if res.Status == StatusOK {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	s.DurationMS = float64(time.Since(start)) / float64(time.Millisecond)
	return s
}

func encodeCommand(entry *logreplay.Entry) (string, error) {
	cmd := command{ID: entry.ID, Method: entry.Name, SessionID: entry.SessionID}
	if entry.Payload != "" {
		if !json.Valid([]byte(entry.Payload)) {
			return "", fmt.Errorf("%w: line %d: params are not valid json", logreplay.ErrInvalidPayload, entry.Line)
		}
		cmd.Params = json.RawMessage(entry.Payload)
	}
	b, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
