package logreplay

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// maxLineBytes bounds a single log line. Payload dumps of large DOM snapshots
// routinely exceed the bufio default.
const maxLineBytes = 16 << 20

const (
	preambleLen    = len("[0000000000.000][DEBUG]:")
	preambleSuffix = "][DEBUG]:"
	headerMarker   = "DevTools"
)

// Reader yields records from a log stream in order.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	err     error
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{scanner: sc}
}

// Next returns the next record logged for protocol, skipping everything else.
// It returns io.EOF once the stream is exhausted. A *ParseError leaves the
// reader positioned after the malformed record, so the caller may continue.
func (r *Reader) Next(protocol Protocol) (*Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	for {
		text, ok := r.readLine()
		if !ok {
			return nil, r.err
		}
		rest, isHeader := splitPreamble(text)
		if !isHeader {
			continue
		}
		entry, rest, err := parseHeader(rest)
		if err != nil {
			return nil, &ParseError{Line: r.line, Err: ErrInvalidHeader, Msg: err.Error()}
		}
		entry.Line = r.line
		if entry.Protocol != protocol {
			continue
		}
		if entry.Protocol == ProtocolHTTP && entry.EventType == EventRequest {
			return entry, nil
		}
		payload, err := r.readPayload(rest)
		if err != nil {
			if r.err != nil && r.err != io.EOF {
				return nil, r.err
			}
			return nil, &ParseError{Line: entry.Line, Err: ErrInvalidPayload, Msg: err.Error()}
		}
		entry.Payload = payload
		return entry, nil
	}
}

// ReadAll drains every record for protocol.
func (r *Reader) ReadAll(protocol Protocol) ([]*Entry, error) {
	var out []*Entry
	for {
		entry, err := r.Next(protocol)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
}

func (r *Reader) readLine() (string, bool) {
	if r.scanner.Scan() {
		r.line++
		return r.scanner.Text(), true
	}
	if err := r.scanner.Err(); err != nil {
		r.err = err
	} else {
		r.err = io.EOF
	}
	return "", false
}

func (r *Reader) readPayload(rest string) (string, error) {
	if len(rest) < 2 {
		return "", errors.New("missing payload")
	}
	// One separator character sits between the header and the payload.
	text := rest[1:]
	open := text[0]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return "", errors.New("payload must start with '{' or '['")
	}

	var b strings.Builder
	depth := 0
	for {
		b.WriteString(text)
		depth += bracketBalance(text, open, close)
		if depth == 0 {
			return b.String(), nil
		}
		next, ok := r.readLine()
		if !ok {
			return "", errors.New("unterminated payload")
		}
		text = next
	}
}

// bracketBalance counts open minus close outside string literals. Quote state
// does not carry across lines.
func bracketBalance(line string, open, close byte) int {
	inQuote := false
	total := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if !inQuote && c == open {
			total++
		}
		if !inQuote && c == close {
			total--
		}
		if c == '"' && (i == 0 || line[i-1] != '\\') {
			inQuote = !inQuote
		}
	}
	return total
}

// splitPreamble checks the timestamp/level prefix and the DevTools marker,
// returning the remainder of the line.
func splitPreamble(line string) (string, bool) {
	word, rest := nextWord(line)
	if !matchPreamble(word) {
		return "", false
	}
	word, rest = nextWord(rest)
	if word != headerMarker {
		return "", false
	}
	return rest, true
}

func matchPreamble(word string) bool {
	return len(word) == preambleLen &&
		word[0] == '[' &&
		word[11] == '.' &&
		strings.HasSuffix(word, preambleSuffix)
}

func parseHeader(rest string) (*Entry, string, error) {
	entry := &Entry{}

	word, rest := nextWord(rest)
	switch Protocol(word) {
	case ProtocolHTTP, ProtocolWebSocket:
		entry.Protocol = Protocol(word)
	default:
		return nil, "", errors.New("unknown protocol " + strconv.Quote(word))
	}

	word, rest = nextWord(rest)
	switch word {
	case "Command:", "Request:":
		entry.EventType = EventRequest
	case "Response:":
		entry.EventType = EventResponse
	case "Event:":
		entry.EventType = EventEvent
	default:
		return nil, "", errors.New("unknown event type " + strconv.Quote(word))
	}

	if entry.Protocol == ProtocolHTTP && entry.EventType == EventResponse {
		return entry, rest, nil
	}

	entry.Name, rest = nextWord(rest)
	if entry.Name == "" {
		return nil, "", errors.New("missing command name")
	}
	if entry.Protocol == ProtocolHTTP {
		return entry, rest, nil
	}

	for {
		word, after := nextWord(rest)
		key, value, ok := parseAttribute(word)
		if !ok {
			break
		}
		rest = after
		switch key {
		case "id":
			id, err := strconv.Atoi(value)
			if err != nil {
				return nil, "", errors.New("bad id " + strconv.Quote(value))
			}
			entry.ID = id
		case "session_id":
			entry.SessionID = value
		}
	}
	if entry.EventType != EventEvent && entry.ID <= 0 {
		return nil, "", errors.New("missing sequential id")
	}
	return entry, rest, nil
}

// parseAttribute splits a "(key=value)" header token.
func parseAttribute(word string) (string, string, bool) {
	if len(word) < 4 || word[0] != '(' || word[len(word)-1] != ')' {
		return "", "", false
	}
	key, value, ok := strings.Cut(word[1:len(word)-1], "=")
	if !ok || key == "" {
		return "", "", false
	}
	return key, value, true
}

// nextWord skips leading blanks and returns the following run of non-blank
// characters. rest begins at the blank that ended the word.
func nextWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
