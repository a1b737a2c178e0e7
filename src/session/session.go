package session

import (
	"context"
	"errors"
	"fmt"

	"screen-translate/src/glossary"
)

// Status of a Result.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Kind classifies a failed session.
type Kind string

const (
	KindNone                  Kind = ""
	KindMissingCredential     Kind = "MissingCredential"
	KindCaptureSourceNotFound Kind = "CaptureSourceNotFound"
	KindCropFailed            Kind = "CropFailed"
	KindNoTextExtracted       Kind = "NoTextExtracted"
	KindServiceError          Kind = "ServiceError"
	KindImageLoadFailed       Kind = "ImageLoadFailed"
)

// User-facing messages.
const (
	msgMissingCredential     = "Please enter your Gemini API Key."
	msgCaptureSourceNotFound = "Could not find the screen to capture."
	msgCropFailed            = "Failed to crop the selected region."
	msgNoTextExtracted       = "No text could be extracted from the image."
	msgImageLoadFailed       = "Failed to load screenshot data."
	msgBusy                  = "Busy, please retry"
)

// Error is a pipeline failure. Error() is the message shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind when target carries no message, so
// errors.Is(err, &Error{Kind: KindCropFailed}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// ServiceFailure wraps an error from the recognition or translation service.
func ServiceFailure(err error) *Error {
	return newError(KindServiceError, fmt.Sprintf("An error occurred: %v", err), err)
}

// CaptureFailure wraps an error from the capture coordinator.
func CaptureFailure(err error) *Error {
	return newError(KindCaptureSourceNotFound, msgCaptureSourceNotFound, err)
}

// KindOf returns the Kind of err, or KindServiceError for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServiceError
}

// Result is the observable state of one session.
type Result struct {
	SessionID      uint64
	Status         Status
	OriginalText   string
	TranslatedText string
	Kind           Kind
	ErrorMessage   string
}

// Terminal reports whether no further updates follow for this session.
func (r Result) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// Err returns the failure as an error, or nil.
func (r Result) Err() error {
	if r.Status != StatusFailed {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.ErrorMessage}
}

func failed(id uint64, original string, err *Error) Result {
	return Result{
		SessionID:    id,
		Status:       StatusFailed,
		OriginalText: original,
		Kind:         err.Kind,
		ErrorMessage: err.Error(),
	}
}

// Recognizer extracts text from a PNG image.
type Recognizer interface {
	Recognize(ctx context.Context, apiKey string, png []byte) (string, error)
}

// Translator renders text in a target language.
type Translator interface {
	Translate(ctx context.Context, apiKey, text, targetLanguage string) (string, error)
}

// CredentialSource yields the current API key; "" means none.
type CredentialSource interface {
	Get() (string, error)
}

// GlossarySource yields the current glossary.
type GlossarySource interface {
	List() ([]glossary.Term, error)
}

// StaticCredential is a fixed API key.
type StaticCredential string

func (s StaticCredential) Get() (string, error) { return string(s), nil }

// StaticGlossary is a fixed term list.
type StaticGlossary []glossary.Term

func (s StaticGlossary) List() ([]glossary.Term, error) { return s, nil }
