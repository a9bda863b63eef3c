package tts

import "sort"

// ElevenLabsVoices maps friendly preset names to ElevenLabs voice IDs.
// Use ResolveElevenLabsVoice to look up a voice by name or pass through raw IDs.
var ElevenLabsVoices = map[string]string{
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"aria":      "9BWtsMINqrJLrRacOk9x", // American female, expressive
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"lily":      "pFZP5JQG7iQjIQuC4Bku", // British female, warm
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"domi":      "AZnzlk1XvdvUeBnXmlld", // American female, strong
	"elli":      "MF3mGyEYCl7XYWbV9V6O", // American female, young
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
	"sam":       "yoZ06aMxZJJ28mfd3POQ", // American male, raspy
}

// DefaultElevenLabsVoice is the default voice preset.
const DefaultElevenLabsVoice = "charlotte"

// ResolveElevenLabsVoice returns the voice ID for a preset name,
// or the input unchanged if it's already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}

// IsElevenLabsPreset returns true if the name is a known preset.
func IsElevenLabsPreset(name string) bool {
	_, ok := ElevenLabsVoices[name]
	return ok
}

var openAIVoices = []string{
	VoiceAlloy, VoiceAsh, VoiceCoral, VoiceEcho, VoiceFable,
	VoiceNova, VoiceOnyx, VoiceSage, VoiceShimmer,
}

// Catalogue lists the voices a provider kind offers.
type Catalogue struct {
	Kind    string   `json:"kind"`
	Voices  []string `json:"voices"`
	Default string   `json:"default"`

	// Open catalogues also accept raw voice IDs not in Voices.
	Open bool `json:"open"`
}

// Accepts reports whether voice can be passed to Synthesize.
func (c Catalogue) Accepts(voice string) bool {
	if voice == "" {
		return true
	}
	if c.Open {
		return true
	}
	for _, v := range c.Voices {
		if v == voice {
			return true
		}
	}
	return false
}

// Voices returns the catalogue for a provider kind. The mock provider
// mirrors the OpenAI voices so local runs validate the same way.
func Voices(kind string) Catalogue {
	switch kind {
	case providerElevenLabs:
		names := make([]string, 0, len(ElevenLabsVoices))
		for name := range ElevenLabsVoices {
			names = append(names, name)
		}
		sort.Strings(names)
		return Catalogue{Kind: kind, Voices: names, Default: DefaultElevenLabsVoice, Open: true}
	default:
		voices := make([]string, len(openAIVoices))
		copy(voices, openAIVoices)
		return Catalogue{Kind: kind, Voices: voices, Default: VoiceAlloy}
	}
}
