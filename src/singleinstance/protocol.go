package singleinstance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// One exchange per connection:
//
//	PING\n            -> PONG\n
//	MODE[ LANGUAGE]\n -> SUCCESS\n<text> | ERROR\n<message>
//
// MODE is STDOUT or CLIPBOARD.
const (
	residentHost  = "127.0.0.1"
	pingRequest   = "PING\n"
	pongResponse  = "PONG\n"
	statusSuccess = "SUCCESS\n"
	statusError   = "ERROR\n"
	modeStdout    = "STDOUT"
	modeClipboard = "CLIPBOARD"
)

// Refusals a resident answers with instead of a translation. TryCapture maps
// the wire message back to the same value, so errors.Is works on the client.
var (
	ErrBusy       = errors.New("Busy, please retry")
	ErrCancelled  = errors.New("selection cancelled")
	ErrSuperseded = errors.New("superseded by a newer capture")
)

var refusals = []error{ErrBusy, ErrCancelled, ErrSuperseded}

var errUnexpectedReply = errors.New("unexpected reply status")

// Refused reports whether err is a resident refusal rather than a failed session.
func Refused(err error) bool {
	for _, r := range refusals {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// encodeRequest renders the request line. Newlines in the language are flattened.
func encodeRequest(req Request) string {
	mode := modeClipboard
	if req.OutputToStdout {
		mode = modeStdout
	}
	lang := strings.TrimSpace(strings.ReplaceAll(req.TargetLanguage, "\n", " "))
	if lang == "" {
		return mode + "\n"
	}
	return mode + " " + lang + "\n"
}

func parseRequest(line string) Request {
	line = strings.TrimRight(line, "\r\n")
	mode, lang, _ := strings.Cut(line, " ")
	return Request{
		OutputToStdout: mode == modeStdout,
		TargetLanguage: strings.TrimSpace(lang),
	}
}

func writeSuccess(w *bufio.Writer, text string) error {
	if _, err := w.WriteString(statusSuccess + text); err != nil {
		return err
	}
	return w.Flush()
}

func writeError(w *bufio.Writer, err error) error {
	msg := "unknown session error"
	if err != nil {
		msg = err.Error()
	}
	if _, werr := w.WriteString(statusError + msg); werr != nil {
		return werr
	}
	return w.Flush()
}

// readReply returns the delivered text, or the resident's error. The body runs
// to EOF.
func readReply(r *bufio.Reader) (string, error) {
	status, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read reply body: %w", err)
	}
	switch status {
	case statusSuccess:
		return string(body), nil
	case statusError:
		return "", remoteError(string(body))
	default:
		return "", fmt.Errorf("%w %q", errUnexpectedReply, strings.TrimSpace(status))
	}
}

func remoteError(msg string) error {
	for _, r := range refusals {
		if msg == r.Error() {
			return r
		}
	}
	return errors.New(msg)
}
