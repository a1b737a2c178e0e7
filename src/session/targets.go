package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"screen-translate/src/clipboard"
	"screen-translate/src/singleinstance"
)

// ResultTarget receives the terminal Result of a session.
type ResultTarget interface {
	OnSuccess(res Result) error
	OnFailure(err error) error
}

// Deliver routes a terminal result to target.
func Deliver(target ResultTarget, res Result) error {
	if res.Status == StatusSuccess {
		if err := target.OnSuccess(res); err != nil {
			_ = target.OnFailure(err)
			return err
		}
		return nil
	}
	err := res.Err()
	if err == nil {
		err = errors.New("session ended without a result")
	}
	return target.OnFailure(err)
}

// ClipboardTarget copies the translation.
type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(res Result) error {
	return clipboard.Write(res.TranslatedText)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

// StdoutTarget prints the translation, or both texts as JSON.
type StdoutTarget struct {
	Writer io.Writer
	JSON   bool
}

type jsonResult struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

func (t StdoutTarget) OnSuccess(res Result) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	if t.JSON {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		return enc.Encode(jsonResult{Original: res.OriginalText, Translated: res.TranslatedText})
	}
	_, err := fmt.Fprint(w, res.TranslatedText)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a client that asked the resident instance for a capture.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
}

func (t DelegatedTarget) OnSuccess(res Result) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(res.TranslatedText)
	}
	if err := clipboard.Write(res.TranslatedText); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		err = errors.New("unknown session error")
	}
	return t.Conn.RespondError(err)
}
