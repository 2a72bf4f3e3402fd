package audio

import (
	"math"
	"strings"
	"unicode"

	"codeberg.org/snonux/sahachari/internal/translation"
)

// FormantSampleRate is the sample rate of the built-in synthesizer.
const FormantSampleRate = 16000

const (
	pitchHz   = 120.0
	amplitude = 0.6 * math.MaxInt16
	rampMs    = 8
)

// vowelFormants holds the first two formant frequencies of each vowel.
var vowelFormants = map[rune][2]float64{
	'a': {730, 1090},
	'e': {530, 1840},
	'i': {270, 2290},
	'o': {570, 840},
	'u': {300, 870},
}

const voicedConsonants = "bdgjlmnrvwyz"

// segment is one sound of the output.
type segment struct {
	ms     int
	f1, f2 float64
	noise  bool
}

// Formant speaks text with a crude two-formant source-filter model. Indic
// scripts are transliterated first. The output is a deterministic 16 kHz
// mono WAV.
func Formant(text string, slow bool) []byte {
	var samples []int16
	noise := uint32(1)
	for _, seg := range segments(text, slow) {
		samples = appendSegment(samples, seg, &noise)
	}
	return EncodeWAV(samples, FormantSampleRate)
}

func segments(text string, slow bool) []segment {
	scale := 1.0
	if slow {
		scale = 1.5
	}
	ms := func(base int) int { return int(float64(base) * scale) }

	latin := strings.ToLower(translation.Transliterate(text))
	var out []segment
	for _, r := range latin {
		switch {
		case vowelFormants[r] != [2]float64{}:
			f := vowelFormants[r]
			out = append(out, segment{ms: ms(120), f1: f[0], f2: f[1]})
		case strings.ContainsRune(voicedConsonants, r):
			out = append(out, segment{ms: ms(60), f1: 250, f2: 1200})
		case r >= 'a' && r <= 'z':
			out = append(out, segment{ms: ms(50), noise: true})
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			out = append(out, segment{ms: ms(80)})
		}
	}
	return out
}

func appendSegment(samples []int16, seg segment, noise *uint32) []int16 {
	n := seg.ms * FormantSampleRate / 1000
	ramp := rampMs * FormantSampleRate / 1000
	for i := range n {
		var v float64
		switch {
		case seg.noise:
			*noise = *noise*1664525 + 1013904223
			v = 0.3 * (float64(*noise>>16)/32768.0 - 1.0)
		case seg.f1 > 0:
			t := float64(i) / FormantSampleRate
			glottal := 0.6 + 0.4*math.Sin(2*math.Pi*pitchHz*t)
			v = glottal * (0.6*math.Sin(2*math.Pi*seg.f1*t) + 0.3*math.Sin(2*math.Pi*seg.f2*t))
		}
		env := 1.0
		if i < ramp {
			env = float64(i) / float64(ramp)
		} else if n-i < ramp {
			env = float64(n-i) / float64(ramp)
		}
		samples = append(samples, int16(v*env*amplitude))
	}
	return samples
}
