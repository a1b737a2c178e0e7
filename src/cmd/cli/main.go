package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-translate/src/config"
	"screen-translate/src/logutil"
	"screen-translate/src/runtimeinit"
	"screen-translate/src/screenshot"
	"screen-translate/src/session"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath   string
	region     string
	lang       string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	useStore   bool
	check      bool
}

// streams lets tests drive the command without touching the process's stdio.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr})
}

func runWithArgs(args []string, s streams) error {
	if len(args) == 0 {
		args = []string{"translate-image"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, s)
	cmd.SetArgs(args[1:])
	cmd.SetOut(s.errOut)
	cmd.SetErr(s.errOut)
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "translate-image",
		Short:         "Recognize and translate the text in a PNG image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.check && opts.filePath == "" {
				return errors.New(`required flag(s) "file" not set`)
			}
			return runWithOptions(cmd.Context(), *opts, s)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.region, "region", "", "Crop to x,y,width,height before recognizing (default: whole image)")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "Target language (default: TARGET_LANGUAGE or Korean)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output original and translated text as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().BoolVar(&opts.useStore, "use-store", false, "Use the desktop app's saved key and glossary")
	cmd.Flags().BoolVar(&opts.check, "check", false, "Only verify that the API key can reach the model")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, s streams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	verbosef := func(format string, args ...any) {
		if opts.verbose {
			fmt.Fprintf(s.errOut, "[verbose] "+format+"\n", args...)
		}
	}

	// Configure logging BEFORE any other operations.
	setupLogging := func(bool, string) {
		if opts.verbose {
			log.SetOutput(s.errOut)
		} else {
			log.SetOutput(io.Discard)
		}
	}
	setupLogging(false, "")
	verbosef("Starting translate-image")

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath, TargetLanguageOverride: opts.lang},
		SetupLogging: setupLogging,
		SkipStore:    !opts.useStore,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	verbosef("Config loaded: Model=%s Recognizer=%s", cfg.Model, cfg.Recognizer)
	verbosef("Effective API key path: %s", cfg.APIKeyPath)

	apiKey, err := rt.Pipeline.Credentials.Get()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%s not found. Checked key file %s and %s env var", config.APIKeyEnvVar, cfg.APIKeyPath, config.APIKeyEnvVar)
	}
	verbosef("Using API key %s", logutil.RedactKey(apiKey))

	if opts.check {
		if err := rt.Client.Ping(ctx, apiKey); err != nil {
			return fmt.Errorf("startup check failed: %w", err)
		}
		fmt.Fprintln(s.out, "ok")
		return nil
	}

	data, err := readInput(opts.filePath, s.in)
	if err != nil {
		return err
	}
	verbosef("Read %d bytes", len(data))
	if err := validatePNG(data); err != nil {
		return err
	}

	img, err := screenshot.Decode(data)
	if err != nil {
		return err
	}
	bounds := img.Bounds()

	region := screenshot.Region{Width: bounds.Dx(), Height: bounds.Dy()}
	if opts.region != "" {
		if region, err = parseRegion(opts.region); err != nil {
			return err
		}
	}
	verbosef("Region %+v of %dx%d image", region, bounds.Dx(), bounds.Dy())

	req := session.Request{
		SessionID:      1,
		Image:          screenshot.ScreenImage{DisplayID: opts.filePath, Bounds: bounds, PNG: data},
		Region:         region,
		TargetLanguage: cfg.TargetLanguage,
	}

	start := time.Now()
	res := rt.Pipeline.Execute(ctx, req, func(r session.Result) {
		if r.OriginalText != "" {
			verbosef("Recognized %d characters after %v", len(r.OriginalText), time.Since(start))
		}
	})
	verbosef("Session finished in %v: %s", time.Since(start), res.Status)

	if err := session.Deliver(session.StdoutTarget{Writer: s.out, JSON: opts.jsonOutput}, res); err != nil {
		return err
	}
	return res.Err()
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
	}

	if len(data) == 0 {
		return nil, errors.New("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return errors.New("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

// parseRegion reads "x,y,width,height".
func parseRegion(s string) (screenshot.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return screenshot.Region{}, fmt.Errorf("invalid region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return screenshot.Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	r := screenshot.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !r.Valid() {
		return screenshot.Region{}, fmt.Errorf("invalid region %q: width and height must be positive", s)
	}
	return r, nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "region", "lang", "json", "verbose", "api-key-path", "use-store", "check"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}
