package view

import (
	"regexp"
	"strings"
)

// compoundSounds are checked before falling back to the first letter.
var compoundSounds = []string{
	"ch", "sh", "th", "ph", "wh",
	"bl", "cl", "fl", "gl", "pl", "sl",
	"br", "cr", "dr", "fr", "gr", "pr", "tr",
	"st", "sp", "sw", "sm", "sn", "sc", "sk",
}

var mouthImages = map[string]string{
	"h":  "/mouth_img/h.png",
	"j":  "/mouth_img/j.png",
	"l":  "/mouth_img/l.png",
	"k":  "/mouth_img/k.png",
	"f":  "/mouth_img/f_tmp.png",
	"g":  "/mouth_img/g.png",
	"sh": "/mouth_img/sh.png",
	"ay": "/mouth_img/ay.png",
	"n":  "/mouth_img/n.png",
	"m":  "/mouth_img/m.png",
	"b":  "/mouth_img/b.png",
	"p":  "/mouth_img/p.png",
	"s":  "/mouth_img/s.png",
	"z":  "/mouth_img/z.png",
	"th": "/mouth_img/th.png",
	"w":  "/mouth_img/w.png",
	"ai": "/mouth_img/ai.png",
	"r":  "/mouth_img/r_updated.png",
	"v":  "/mouth_img/v.png",
	"ah": "/mouth_img/ah.png",
	"e":  "/mouth_img/e.png",
	"oh": "/mouth_img/oh.png",
	"t":  "/mouth_img/t.png",
	"d":  "/mouth_img/d.png",
	"ch": "/mouth_img/sh.png",
	"ph": "/mouth_img/p.png",
	"wh": "/mouth_img/w.png",
	"bl": "/mouth_img/b.png",
	"cl": "/mouth_img/k.png",
	"fl": "/mouth_img/f_tmp.png",
	"gl": "/mouth_img/g.png",
	"pl": "/mouth_img/p.png",
	"sl": "/mouth_img/s.png",
	"br": "/mouth_img/b.png",
	"cr": "/mouth_img/k.png",
	"dr": "/mouth_img/d.png",
	"fr": "/mouth_img/f_tmp.png",
	"gr": "/mouth_img/g.png",
	"pr": "/mouth_img/p.png",
	"tr": "/mouth_img/t.png",
	"st": "/mouth_img/s.png",
	"sp": "/mouth_img/s.png",
	"sw": "/mouth_img/s.png",
	"sm": "/mouth_img/s.png",
	"sn": "/mouth_img/s.png",
	"sc": "/mouth_img/s.png",
	"sk": "/mouth_img/k.png",
}

// Sound explains how to produce a target sound.
type Sound struct {
	Type        string
	Description string
	Gesture     string
}

var sounds = map[string]Sound{
	"h":  {"Fricative", "Breathe out gently through your mouth.", "Put your hand in front of your lips and feel the warm air."},
	"j":  {"Approximant", "Lift your tongue close to the roof of your mouth and slide the sound out.", "Smile a little as if starting \"yes.\""},
	"l":  {"Lateral Approximant", "Touch the tip of your tongue just behind your top teeth and let the air flow around the sides.", "Point to your top teeth with your finger."},
	"k":  {"Plosive", "Press the back of your tongue against the roof of your mouth, then let the air pop out.", "Cover your mouth with your hand to feel the small burst."},
	"g":  {"Plosive", "Do the same as /k/, but turn on your voice.", "Put your hand on your throat and feel it buzz."},
	"sh": {"Fricative", "Put your tongue close to the roof of your mouth and blow air, like telling someone \"shhh.\"", "Hold a finger to your lips."},
	"th": {"Fricative", "Place your tongue gently between your teeth and blow air out.", "Point to your teeth with your finger."},
	"ch": {"Affricate", "Start with your tongue blocking the air, then let it go with a quick \"ch.\"", "Clap your hands once to show the quick burst."},
	"r":  {"Approximant", "Curl your tongue a little back in your mouth and use your voice.", "Put your hand on your throat to feel the buzz."},
	"s":  {"Fricative", "Put your tongue close behind your top teeth and blow air like a hiss.", "Move your hand like a snake sliding."},
	"z":  {"Fricative", "Do the same as /s/, but turn on your voice.", "Put your hand on your throat to feel the buzz while hissing."},
}

var themeSound = regexp.MustCompile(`words_with_([a-z_]+)_`)

// FirstSound returns the leading sound of word, preferring two-letter clusters.
func FirstSound(word string) string {
	w := NormalizeWord(word)
	if w == "" {
		return ""
	}
	for _, s := range compoundSounds {
		if strings.HasPrefix(w, s) {
			return s
		}
	}
	return w[:1]
}

// MouthImage returns the mouth-shape image path for a sound, or "".
func MouthImage(sound string) string {
	return mouthImages[strings.ToLower(sound)]
}

func SoundDescription(sound string) (Sound, bool) {
	s, ok := sounds[strings.ToLower(sound)]
	return s, ok
}

// SoundFromTheme extracts "s" from a theme like "words_with_s_initial".
func SoundFromTheme(theme string) string {
	m := themeSound.FindStringSubmatch(theme)
	if m == nil {
		return ""
	}
	return m[1]
}
