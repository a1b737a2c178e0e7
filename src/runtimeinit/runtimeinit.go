package runtimeinit

import (
	"errors"
	"fmt"
	"log"
	"time"

	"screen-translate/src/clipboard"
	"screen-translate/src/config"
	"screen-translate/src/llm"
	"screen-translate/src/session"
	"screen-translate/src/store"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(enable bool, dir string)
	// SkipStore keeps headless tools away from the user's database; the pipeline
	// then uses the configured key and no glossary.
	SkipStore bool
}

// Runtime is everything a process needs to run translation sessions.
type Runtime struct {
	Config   *config.Config
	Store    *store.Store
	Client   *llm.Client
	Pipeline *session.Pipeline

	recognizer session.Recognizer
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging, cfg.DataDir)
	}

	rt := &Runtime{Config: cfg, Client: NewClient(cfg)}

	var creds session.CredentialSource = session.StaticCredential(cfg.APIKey)
	var gloss session.GlossarySource
	if !opts.SkipStore {
		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		if err := st.Credentials().SeedIfEmpty(cfg.APIKey); err != nil {
			log.Printf("Failed to seed API key: %v", err)
		}
		rt.Store = st
		creds = st.Credentials()
		gloss = st.Glossary()
	}

	if err := clipboard.Init(); err != nil {
		log.Printf("Clipboard unavailable: %v", err)
	}

	rec, err := NewRecognizer(cfg, rt.Client)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.recognizer = rec

	rt.Pipeline = &session.Pipeline{
		Recognizer:  rec,
		Translator:  rt.Client,
		Credentials: creds,
		Glossary:    gloss,
		Deadline:    time.Duration(cfg.RequestDeadlineSec) * time.Second,
	}

	log.Printf("Runtime ready: model=%s recognizer=%s data=%s", cfg.Model, cfg.Recognizer, cfg.DataDir)
	return rt, nil
}

// NewClient builds the Gemini client from configuration.
func NewClient(cfg *config.Config) *llm.Client {
	c := llm.NewClient(cfg.Model, cfg.APIBase, time.Duration(cfg.RequestDeadlineSec)*time.Second)
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	return c
}

// NewRecognizer picks the text recognizer. Gemini is the default; tesseract is
// used only when configured and compiled in.
func NewRecognizer(cfg *config.Config, client *llm.Client) (session.Recognizer, error) {
	if cfg.Recognizer != config.RecognizerTesseract {
		return client, nil
	}
	if !llm.TesseractAvailable {
		return nil, fmt.Errorf("RECOGNIZER=tesseract: %w", llm.ErrTesseractUnavailable)
	}
	rec, err := llm.NewTesseractRecognizer(cfg.TesseractLanguages...)
	if err != nil {
		return nil, fmt.Errorf("failed to start tesseract: %w", err)
	}
	return rec, nil
}

// Close releases the store and any local recognizer.
func (r *Runtime) Close() error {
	var errs []error
	if c, ok := r.recognizer.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}
