package store

import (
	"encoding/base64"
	"log"
	"strings"
)

// DefaultTargetLanguage matches the first entry of Languages.
const DefaultTargetLanguage = "Korean"

// Languages offered as translation targets.
var Languages = []string{"Korean", "English", "Japanese", "Chinese", "Spanish", "French", "German"}

// Credentials stores the service API key base64-encoded. This is obfuscation, not encryption.
type Credentials struct {
	s *Store
}

func (s *Store) Credentials() *Credentials { return &Credentials{s: s} }

// Get returns the stored key, or "" when none is stored. A value that is not valid
// base64 is removed and treated as absent.
func (c *Credentials) Get() (string, error) {
	raw, ok, err := c.s.getSetting(keyAPIKey)
	if err != nil || !ok {
		return "", err
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		log.Printf("Store: discarding undecodable API key: %v", err)
		if derr := c.s.deleteSetting(keyAPIKey); derr != nil {
			return "", derr
		}
		return "", nil
	}
	return string(decoded), nil
}

// Set stores key. An empty (or whitespace-only) key removes the stored value.
func (c *Credentials) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return c.s.deleteSetting(keyAPIKey)
	}
	return c.s.setSetting(keyAPIKey, base64.StdEncoding.EncodeToString([]byte(key)))
}

// SeedIfEmpty stores key only when nothing is stored yet.
func (c *Credentials) SeedIfEmpty(key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	current, err := c.Get()
	if err != nil {
		return err
	}
	if current != "" {
		return nil
	}
	return c.Set(key)
}

// Settings holds UI preferences.
type Settings struct {
	s *Store
}

func (s *Store) Settings() *Settings { return &Settings{s: s} }

// TargetLanguage returns the persisted language, or fallback when unset.
func (p *Settings) TargetLanguage(fallback string) string {
	v, ok, err := p.s.getSetting(keyTargetLanguage)
	if err != nil || !ok || v == "" {
		return fallback
	}
	return v
}

func (p *Settings) SetTargetLanguage(lang string) error {
	return p.s.setSetting(keyTargetLanguage, strings.TrimSpace(lang))
}

// Font returns the preferred font family; "" means the system default.
func (p *Settings) Font() string {
	v, _, err := p.s.getSetting(keyFont)
	if err != nil {
		return ""
	}
	return v
}

func (p *Settings) SetFont(family string) error {
	if family == "" {
		return p.s.deleteSetting(keyFont)
	}
	return p.s.setSetting(keyFont, family)
}
