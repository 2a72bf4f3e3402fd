package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/fallback"
)

// ESpeakConfig holds the espeak-ng settings for one synthesis.
type ESpeakConfig struct {
	Voice     string // Voice variant, e.g. "te" or "en-us+f1"
	Speed     int    // Words per minute, 80 to 450
	Pitch     int    // 0 to 99
	Amplitude int    // 0 to 200
	WordGap   int    // Gap between words in 10ms units
}

// espeakVoices maps languages to espeak-ng voice names.
var espeakVoices = map[string]string{
	"en": "en-us",
	"te": "te",
	"hi": "hi",
	"ta": "ta",
	"kn": "kn",
	"ml": "ml",
}

// ESpeakConfigFor returns the settings used for lang.
func ESpeakConfigFor(lang string, slow bool) ESpeakConfig {
	cfg := ESpeakConfig{Voice: espeakVoices[lang], Speed: 160, Pitch: 50, Amplitude: 100}
	if cfg.Voice == "" {
		cfg.Voice = "en-us"
	}
	if slow {
		cfg.Speed = 120
		cfg.WordGap = 2
	}
	return cfg
}

// Args builds the espeak-ng command line that writes WAV to stdout.
func (c ESpeakConfig) Args(text string) []string {
	args := []string{
		"-v", c.Voice,
		"-s", strconv.Itoa(clamp(c.Speed, 80, 450)),
		"-p", strconv.Itoa(clamp(c.Pitch, 0, 99)),
		"-a", strconv.Itoa(clamp(c.Amplitude, 0, 200)),
	}
	if c.WordGap > 0 {
		args = append(args, "-g", strconv.Itoa(c.WordGap))
	}
	return append(args, "--stdout", text)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// localProvider is the fallback tier. It prefers espeak-ng and uses the
// built-in synthesizer when the binary is missing or fails.
type localProvider struct {
	binary   string
	lookPath func(string) (string, error)
}

func newLocalProvider(binary string) *localProvider {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &localProvider{binary: binary, lookPath: exec.LookPath}
}

func (p *localProvider) Name() string { return config.ProviderLocalTTS }

func (p *localProvider) Tier() fallback.Tier { return fallback.TierFallback }

func (p *localProvider) Available() error { return nil }

func (p *localProvider) Attempt(ctx context.Context, req Request) (fallback.Reply[Speech], error) {
	path, err := p.lookPath(p.binary)
	if err != nil {
		return p.builtin(req, fmt.Sprintf("%s not found, used the built-in synthesizer", p.binary))
	}

	cfg := ESpeakConfigFor(req.Language, req.Slow)
	if req.Voice != "" && strings.HasPrefix(req.Voice, cfg.Voice) {
		cfg.Voice = req.Voice
	}
	audio, err := runESpeak(ctx, path, cfg, req.Text)
	if err != nil {
		if ctx.Err() != nil {
			return fallback.Reply[Speech]{}, ctx.Err()
		}
		return p.builtin(req, fmt.Sprintf("%s failed (%v), used the built-in synthesizer", p.binary, err))
	}

	return fallback.OK(Speech{
		Audio:    audio,
		Format:   FormatWAV,
		Language: req.Language,
		Voice:    "espeak-ng:" + cfg.Voice,
	}), nil
}

func (p *localProvider) builtin(req Request, warning string) (fallback.Reply[Speech], error) {
	return fallback.Warn(Speech{
		Audio:    Formant(req.Text, req.Slow),
		Format:   FormatWAV,
		Language: req.Language,
		Voice:    "formant",
	}, warning), nil
}

// runESpeak runs espeak-ng and returns the WAV it writes to stdout.
func runESpeak(ctx context.Context, path string, cfg ESpeakConfig, text string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, cfg.Args(text)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	if !bytes.HasPrefix(stdout.Bytes(), []byte("RIFF")) {
		return nil, fmt.Errorf("output is not a WAV stream")
	}
	return stdout.Bytes(), nil
}
