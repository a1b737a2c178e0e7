package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"screen-translate/src/glossary"
	"screen-translate/src/logutil"
	"screen-translate/src/screenshot"
)

// Request is everything the pipeline needs for one session.
type Request struct {
	SessionID      uint64
	Image          screenshot.ScreenImage
	Region         screenshot.Region
	TargetLanguage string
}

// Pipeline crops, recognizes, applies the glossary and translates.
type Pipeline struct {
	Recognizer  Recognizer
	Translator  Translator
	Credentials CredentialSource
	Glossary    GlossarySource

	// Deadline bounds both service calls together. Zero means no extra bound.
	Deadline time.Duration
}

// Execute runs one session to a terminal Result. progress, when set, receives each
// intermediate Running state. Execute never panics on bad input and never returns
// a non-terminal Result.
func (p *Pipeline) Execute(ctx context.Context, req Request, progress func(Result)) Result {
	id := req.SessionID
	report := func(r Result) {
		if progress != nil {
			progress(r)
		}
	}

	report(Result{SessionID: id, Status: StatusRunning})

	apiKey, err := p.apiKey()
	if err != nil || apiKey == "" {
		if err != nil {
			log.Printf("Session %d: credential lookup failed: %v", id, err)
		}
		return failed(id, "", newError(KindMissingCredential, msgMissingCredential, err))
	}

	cropped, cerr := cropRequest(req)
	if cerr != nil {
		log.Printf("Session %d: %v", id, cerr.Err)
		return failed(id, "", cerr)
	}

	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	log.Printf("Session %d: recognizing %dx%d region (key %s)", id, req.Region.Width, req.Region.Height, logutil.RedactKey(apiKey))
	extracted, err := p.Recognizer.Recognize(ctx, apiKey, cropped)
	if err != nil {
		log.Printf("Session %d: recognition failed: %v", id, err)
		return failed(id, "", ServiceFailure(err))
	}
	if strings.TrimSpace(extracted) == "" {
		return failed(id, "", newError(KindNoTextExtracted, msgNoTextExtracted, nil))
	}
	log.Printf("Session %d: extracted %s", id, logutil.SanitizeForLogging(extracted))

	report(Result{SessionID: id, Status: StatusRunning, OriginalText: extracted})

	substituted := glossary.Apply(extracted, p.terms(id))

	translated, err := p.Translator.Translate(ctx, apiKey, substituted, req.TargetLanguage)
	if err != nil {
		log.Printf("Session %d: translation failed: %v", id, err)
		return failed(id, extracted, ServiceFailure(err))
	}

	log.Printf("Session %d: translated to %s (%d chars)", id, req.TargetLanguage, len(translated))
	return Result{
		SessionID:      id,
		Status:         StatusSuccess,
		OriginalText:   extracted,
		TranslatedText: translated,
	}
}

func (p *Pipeline) apiKey() (string, error) {
	if p.Credentials == nil {
		return "", nil
	}
	key, err := p.Credentials.Get()
	return strings.TrimSpace(key), err
}

func (p *Pipeline) terms(id uint64) []glossary.Term {
	if p.Glossary == nil {
		return nil
	}
	terms, err := p.Glossary.List()
	if err != nil {
		log.Printf("Session %d: glossary unavailable, continuing without it: %v", id, err)
		return nil
	}
	return terms
}

// cropRequest decodes the screen image and returns the selected region as PNG.
func cropRequest(req Request) ([]byte, *Error) {
	if req.Image.Empty() {
		return nil, newError(KindImageLoadFailed, msgImageLoadFailed, errors.New("screen image is empty"))
	}
	img, err := screenshot.Decode(req.Image.PNG)
	if err != nil {
		return nil, newError(KindImageLoadFailed, msgImageLoadFailed, err)
	}
	cropped, err := screenshot.Crop(img, req.Region)
	if err != nil {
		return nil, newError(KindCropFailed, msgCropFailed, err)
	}
	data, err := screenshot.Encode(cropped)
	if err != nil {
		return nil, newError(KindCropFailed, msgCropFailed, err)
	}
	return data, nil
}
