package classifier

import (
	"github.com/RyanBlaney/sonido-vibe/classifier/config"
)

// EmotionMapping assigns event-model labels to emotions
type EmotionMapping map[string]Emotion

// DefaultEmotionMapping returns a fresh copy of the built-in label table for
// the AudioSet vocabulary
func DefaultEmotionMapping() EmotionMapping {
	m := make(EmotionMapping, 70)
	for emotion, labels := range defaultLabels {
		for _, label := range labels {
			m[label] = emotion
		}
	}
	return m
}

var defaultLabels = map[Emotion][]string{
	config.EmotionHappy: {
		"Music",
		"Laughter",
		"Giggle",
		"Chuckle, chortle",
		"Belly laugh",
		"Cheer",
		"Applause",
		"Musical instrument",
	},
	config.EmotionSad: {
		"Crying, sobbing",
		"Whimper",
		"Wail, moan",
		"Sigh",
	},
	config.EmotionAngry: {
		"Screaming",
		"Shout",
		"Yell",
		"Battle cry",
		"Crowd",
	},
	config.EmotionCalm: {
		"Silence",
		"White noise",
		"Pink noise",
		"Rain",
		"Raindrop",
		"Rain on surface",
		"Stream",
		"Wind",
		"Rustle",
		"Ocean",
		"Waves, surf",
		"Water",
		"Waterfall",
		"Pour",
		"Trickle, dribble",
		"Gurgling",
		"Slosh",
		"Splash, splatter",
		"Fill (with liquid)",
		"Drip",
		"Liquid",
	},
	config.EmotionEnergetic: {
		"Speech",
		"Conversation",
		"Inside, small room",
		"Inside, large room or hall",
		"Inside, public space",
		"Clapping",
		"Traffic noise, roadway noise",
		"Vehicle",
		"Car",
		"Bus",
		"Truck",
	},
	config.EmotionAnxious: {
		"Alarm",
		"Siren",
		"Emergency vehicle",
		"Fire alarm",
		"Smoke alarm",
		"Doorbell",
		"Knock",
	},
}
