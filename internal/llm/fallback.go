package llm

import (
	"context"

	"github.com/mindfulai/naina/internal/emotion"
)

var fallbackReplies = map[string][]string{
	"sad": {
		"I can hear the sadness in what you're saying. What's been weighing on you?",
		"That sounds really tough. How long have you been feeling this way?",
		"I'm here with you. Tell me more about what's making you feel sad.",
	},
	"anxious": {
		"Anxiety can feel so overwhelming. What's triggering these feelings right now?",
		"I understand how unsettling anxiety can be. What's been on your mind?",
		"Let's work through this together. What specifically is making you anxious?",
	},
	"angry": {
		"It's okay to feel angry. What happened that's making you feel this way?",
		"Anger is a valid emotion. Tell me what's frustrating you.",
		"I can sense your frustration. What's been building up?",
	},
	"happy": {
		"It's wonderful to hear some positivity! What's been going well?",
		"I'm glad things are looking up. Tell me more!",
		"That's great to hear. What's been making you feel good?",
	},
	"neutral": {
		"I'm listening. Tell me more about what's on your mind.",
		"How have things been going for you lately?",
		"What would you like to talk about today?",
	},
}

// Mood maps an emotion to the conversational mood used to pick a reply.
func Mood(e emotion.Emotion) string {
	switch e {
	case emotion.Sadness:
		return "sad"
	case emotion.Fear:
		return "anxious"
	case emotion.Anger:
		return "angry"
	case emotion.Joy:
		return "happy"
	default:
		return "neutral"
	}
}

// Fallback answers from canned, mood-keyed replies. It rotates through them
// by turn index so consecutive turns vary without randomness.
type Fallback struct{}

func (Fallback) Generate(_ context.Context, req Request) (string, error) {
	replies := fallbackReplies[Mood(req.Emotion)]
	i := req.TurnIndex % len(replies)
	if i < 0 {
		i = -i
	}
	return replies[i], nil
}
