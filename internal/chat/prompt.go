package chat

import (
	"fmt"
	"strings"

	"creatorchat-service/internal/ragie"
)

// historyWindow bounds the conversation window forwarded to the model.
// Older turns are dropped, not summarized.
const historyWindow = 10

// noContextPlaceholder is substituted when retrieval returned nothing,
// so the model is told explicitly that it lacks grounding instead of
// inferring it from an empty section.
const noContextPlaceholder = "No relevant content found from creators."

const passageDelimiter = "\n\n---\n\n"

// systemPromptTemplate is the fixed persona directive. The persona
// speaks first person as the creator and never references the retrieved
// material meta-textually.
const systemPromptTemplate = `You are a subject-matter expert chatting with a fan. Respond in FIRST PERSON - you ARE the expert, and the context below contains your knowledge and opinions.

RULES:
- Speak naturally in first person as yourself, the expert
- Use the context as your knowledge - don't reference "notes", "documents", or "sources"
- Just share your opinions and analysis directly, as if from memory
- If info isn't in the context, you simply don't have a take on it yet
- Never make up analysis not supported by the context

TONE: Confident, casual, helpful. Like texting with a friend who knows the subject.

Your knowledge:
{context}`

// Message is one turn of a conversation as forwarded to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ComposeSystemPrompt renders the persona instruction with the retrieved
// passages embedded. Passages keep retrieval ranking order and each one
// is labeled with a 1-based source index and its provenance label.
func ComposeSystemPrompt(passages []ragie.Passage) string {
	if len(passages) == 0 {
		return strings.Replace(systemPromptTemplate, "{context}", noContextPlaceholder, 1)
	}

	sections := make([]string, len(passages))
	for i, p := range passages {
		sections[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, p.Source, p.Text)
	}

	return strings.Replace(systemPromptTemplate, "{context}", strings.Join(sections, passageDelimiter), 1)
}

// SourceManifest returns the de-duplicated provenance labels across the
// passages, in order of first occurrence. Emitted to the client before
// any generated content so provenance can render first.
func SourceManifest(passages []ragie.Passage) []string {
	seen := make(map[string]bool, len(passages))
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		if seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		sources = append(sources, p.Source)
	}
	return sources
}

// TruncateHistory keeps the final historyWindow entries in their
// original relative order. Server metadata from prior turns (such as
// source labels) is not replayed to the model.
func TruncateHistory(history []Message) []Message {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}
