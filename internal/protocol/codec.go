package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is a decoded client frame: a command plus an ordered field list.
type Request struct {
	Command string
	Fields  []string
}

// Response is a decoded server frame. Extra is everything after the second
// separator, verbatim; it may itself contain separators or newlines (e.g. one
// record per line in list responses).
type Response struct {
	Code    int
	Message string
	Extra   string
}

// NewResponse builds a response value.
func NewResponse(code int, message, extra string) *Response {
	return &Response{Code: code, Message: message, Extra: extra}
}

// Encode renders the response as a frame body.
func (r *Response) Encode() string {
	return EncodeResponse(r.Code, r.Message, r.Extra)
}

// EncodeRequest builds a request frame body (without the terminator).
// Field values containing the separator or a terminator byte are rejected,
// since the encoding has no escaping.
func EncodeRequest(command string, fields ...string) (string, error) {
	if command == "" || strings.ContainsAny(command, "|\r\n") {
		return "", fmt.Errorf("%w: command %q", ErrInvalidField, command)
	}
	var sb strings.Builder
	sb.WriteString(command)
	for _, f := range fields {
		if strings.ContainsAny(f, "|\r\n") {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
		sb.WriteByte(Separator)
		sb.WriteString(f)
	}
	return sb.String(), nil
}

// DecodeRequest splits a request frame body on every separator. The first
// token is the command; the rest are fields.
func DecodeRequest(frame string) (*Request, error) {
	if frame == "" {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}
	parts := strings.Split(frame, string(Separator))
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrMalformedMessage)
	}
	return &Request{Command: parts[0], Fields: parts[1:]}, nil
}

// EncodeResponse builds a response frame body. An empty extra is omitted
// entirely rather than encoded as a trailing separator.
func EncodeResponse(code int, message, extra string) string {
	if extra == "" {
		return fmt.Sprintf("%d%c%s", code, Separator, message)
	}
	return fmt.Sprintf("%d%c%s%c%s", code, Separator, message, Separator, extra)
}

// DecodeResponse splits a response frame body on the first two separators
// only. Everything after the second separator is Extra, verbatim, so list
// payloads may safely contain separator bytes. This is deliberately
// asymmetric with request decoding.
func DecodeResponse(frame string) (*Response, error) {
	parts := strings.SplitN(frame, string(Separator), 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: missing separator", ErrMalformedMessage)
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad status code %q", ErrMalformedMessage, parts[0])
	}
	resp := &Response{Code: code, Message: parts[1]}
	if len(parts) == 3 {
		resp.Extra = parts[2]
	}
	return resp, nil
}
