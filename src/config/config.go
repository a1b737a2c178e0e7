package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"screen-translate/src/singleinstance"
)

const (
	APIKeyEnvVar      = "GEMINI_API_KEY"
	APIKeyPathEnvVar  = "GEMINI_API_KEY_FILE"
	EnvPathEnvVar     = "SCREEN_TRANSLATE_ENV"
	DefaultAPIKeyPath = "/run/secrets/api_keys/gemini"

	DefaultModel          = "gemini-2.5-flash"
	DefaultTargetLanguage = "Korean"
	DefaultHotkey         = "Ctrl+Alt+T"

	RecognizerGemini    = "gemini"
	RecognizerTesseract = "tesseract"
)

type LoadOptions struct {
	APIKeyPathOverride     string
	TargetLanguageOverride string
}

type Config struct {
	APIKey             string
	APIKeyPath         string
	Model              string
	APIBase            string
	TargetLanguage     string
	Hotkey             string
	EnableFileLogging  bool
	RequestDeadlineSec int
	MaxRetries         int
	DataDir            string
	CopyToClipboard    bool
	Recognizer         string
	TesseractLanguages []string
	// ResidentPorts is where the resident listens and --capture looks for it.
	ResidentPorts singleinstance.PortRange
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) otherwise the file named by SCREEN_TRANSLATE_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	targetLanguage := getEnvWithDefault("TARGET_LANGUAGE", DefaultTargetLanguage)
	if override := strings.TrimSpace(opts.TargetLanguageOverride); override != "" {
		targetLanguage = override
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:             resolveAPIKey(apiKeyPath),
		APIKeyPath:         apiKeyPath,
		Model:              getEnvWithDefault("MODEL", DefaultModel),
		APIBase:            os.Getenv("GEMINI_API_BASE"),
		TargetLanguage:     targetLanguage,
		Hotkey:             getEnvWithDefault("HOTKEY", DefaultHotkey),
		EnableFileLogging:  envBool("ENABLE_FILE_LOGGING"),
		RequestDeadlineSec: envPositiveInt("REQUEST_DEADLINE_SEC", 60),
		MaxRetries:         envPositiveInt("MAX_RETRIES", 3),
		DataDir:            dataDir,
		CopyToClipboard:    envBool("COPY_TO_CLIPBOARD"),
		Recognizer:         resolveRecognizer(os.Getenv("RECOGNIZER")),
		TesseractLanguages: splitList(getEnvWithDefault("TESSERACT_LANGS", "eng")),
		ResidentPorts: singleinstance.PortRange{
			Start: envInt("SINGLEINSTANCE_PORT_START", singleinstance.DefaultPorts.Start),
			End:   envInt("SINGLEINSTANCE_PORT_END", singleinstance.DefaultPorts.End),
		}.Normalize(),
	}

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return strings.TrimSpace(os.Getenv(APIKeyEnvVar))
}

func resolveDataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("DATA_DIR")); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "screen-translate"), nil
}

func resolveRecognizer(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case RecognizerTesseract:
		return RecognizerTesseract
	default:
		return RecognizerGemini
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	return strings.ToLower(strings.TrimSpace(os.Getenv(key))) == "true"
}

func envPositiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' }) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
