package replay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/syncws/internal/logreplay"
	"github.com/danmuck/syncws/internal/session"
	"github.com/danmuck/syncws/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const trace = `[1531428669.700][DEBUG]: DevTools WebSocket Command: Page.enable (id=1) {
}
[1531428669.710][DEBUG]: DevTools WebSocket Event: Page.frameStartedLoading {
   "frameId": "F1"
}
[1531428669.720][DEBUG]: DevTools WebSocket Response: Page.enable (id=1) {
}
[1531428669.730][DEBUG]: DevTools WebSocket Command: Runtime.evaluate (id=2) {
   "expression": "1+1"
}
[1531428669.740][DEBUG]: DevTools WebSocket Response: Runtime.evaluate (id=2) {
   "result": {"type": "number", "value": 2}
}
`

// scriptedSender answers commands from reply and times out otherwise.
type scriptedSender struct {
	mu           sync.Mutex
	sent         []command
	inbox        []string
	reply        func(cmd command) []string
	rejectMethod string
	disconnected bool
}

func (s *scriptedSender) Send(message string) bool {
	var cmd command
	if err := json.Unmarshal([]byte(message), &cmd); err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.Method == s.rejectMethod {
		return false
	}
	s.sent = append(s.sent, cmd)
	if s.reply != nil {
		s.inbox = append(s.inbox, s.reply(cmd)...)
	}
	return true
}

func (s *scriptedSender) ReceiveNextMessage(deadline time.Time) (string, session.StatusCode) {
	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return "", session.StatusDisconnected
	}
	if len(s.inbox) > 0 {
		msg := s.inbox[0]
		s.inbox = s.inbox[1:]
		s.mu.Unlock()
		return msg, session.StatusOK
	}
	s.mu.Unlock()
	time.Sleep(time.Until(deadline))
	return "", session.StatusTimeout
}

func okReply(cmd command) []string {
	b, _ := json.Marshal(map[string]any{"id": cmd.ID, "result": map[string]any{}})
	return []string{string(b)}
}

func runTrace(t *testing.T, sender Sender, cfg Config, text string) (Summary, error) {
	t.Helper()
	return NewRunner(sender, cfg).Run(context.Background(), logreplay.NewReader(strings.NewReader(text)))
}

func TestRunnerReplaysCommands(t *testing.T) {
	testlog.Start(t)
	sender := &scriptedSender{reply: func(cmd command) []string {
		return append([]string{`{"method":"Page.loadEventFired","params":{}}`}, okReply(cmd)...)
	}}

	summary, err := runTrace(t, sender, Config{}, trace)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Commands)
	require.Equal(t, 2, summary.Succeeded)
	require.Zero(t, summary.Failed)
	require.Equal(t, 2, summary.Events)

	require.Len(t, sender.sent, 2)
	require.Equal(t, "Page.enable", sender.sent[0].Method)
	require.Equal(t, 1, sender.sent[0].ID)
	require.JSONEq(t, `{"expression":"1+1"}`, string(sender.sent[1].Params))

	require.Equal(t, "Runtime.evaluate", summary.Results[1].Method)
	require.Equal(t, StatusOK, summary.Results[1].Status)
	require.Equal(t, 1, summary.Results[1].Events)
}

func TestRunnerReportsProtocolErrors(t *testing.T) {
	testlog.Start(t)
	sender := &scriptedSender{reply: func(cmd command) []string {
		if cmd.Method == "Runtime.evaluate" {
			return []string{`{"id":2,"error":{"code":-32601,"message":"not found"}}`}
		}
		return okReply(cmd)
	}}

	summary, err := runTrace(t, sender, Config{}, trace)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, StatusProtocolError, summary.Results[1].Status)
	require.Equal(t, "-32601: not found", summary.Results[1].Error)
}

func TestRunnerTimesOutSilentCommands(t *testing.T) {
	testlog.Start(t)
	sender := &scriptedSender{reply: func(cmd command) []string {
		if cmd.Method == "Page.enable" {
			return nil
		}
		return okReply(cmd)
	}}

	start := time.Now()
	summary, err := runTrace(t, sender, Config{ResponseTimeout: 40 * time.Millisecond}, trace)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.Equal(t, StatusTimeout, summary.Results[0].Status)
	require.Equal(t, StatusOK, summary.Results[1].Status)
}

func TestRunnerStopOnSendFailure(t *testing.T) {
	testlog.Start(t)
	sender := &scriptedSender{reply: okReply, rejectMethod: "Page.enable"}

	summary, err := runTrace(t, sender, Config{StopOnError: true}, trace)
	require.ErrorIs(t, err, ErrCommandFailed)
	require.Len(t, summary.Results, 1)
	require.Equal(t, StatusSendFailed, summary.Results[0].Status)
	require.Empty(t, sender.sent)
}

func TestRunnerAbortsOnDisconnect(t *testing.T) {
	testlog.Start(t)
	sender := &scriptedSender{disconnected: true}

	summary, err := runTrace(t, sender, Config{}, trace)
	require.ErrorIs(t, err, ErrDisconnected)
	require.Len(t, summary.Results, 1)
	require.Equal(t, StatusAborted, summary.Results[0].Status)
}

func TestRunnerPipelinesOutOfOrderResponses(t *testing.T) {
	testlog.Start(t)
	sender := &scriptedSender{reply: func(cmd command) []string {
		if cmd.ID == 1 {
			return nil
		}
		return []string{`{"id":99,"result":{}}`, `{"id":2,"result":{}}`, `{"id":1,"result":{}}`}
	}}

	summary, err := runTrace(t, sender, Config{MaxInFlight: 2}, trace)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Unmatched)
	require.Equal(t, 1, summary.Results[0].ID)
	require.Equal(t, 2, summary.Results[1].ID)
}

func TestRunnerSkipsMalformedRecords(t *testing.T) {
	testlog.Start(t)
	text := "[1531428669.690][DEBUG]: DevTools WebSocket Command: Page.stopLoading {}\n" + trace
	sender := &scriptedSender{reply: okReply}

	summary, err := runTrace(t, sender, Config{}, text)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 2, summary.Succeeded)

	_, err = runTrace(t, &scriptedSender{reply: okReply}, Config{StopOnError: true}, text)
	require.ErrorIs(t, err, logreplay.ErrInvalidHeader)
}

func TestRunnerHonorsContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(&scriptedSender{}, Config{}).Run(ctx, logreplay.NewReader(strings.NewReader(trace)))
	require.True(t, errors.Is(err, context.Canceled))
}

func TestSummaryMarshals(t *testing.T) {
	testlog.Start(t)
	summary, err := runTrace(t, &scriptedSender{reply: okReply}, Config{}, trace)
	require.NoError(t, err)

	out, err := yaml.Marshal(summary)
	require.NoError(t, err)
	require.Contains(t, string(out), "succeeded: 2")
	require.Contains(t, string(out), "method: Runtime.evaluate")

	js, err := json.Marshal(summary)
	require.NoError(t, err)
	require.Contains(t, string(js), `"succeeded":2`)
}
