package chat

import (
	"fmt"
	"strings"
	"testing"

	"creatorchat-service/internal/ragie"

	"github.com/stretchr/testify/assert"
)

func TestComposeSystemPromptEmpty(t *testing.T) {
	prompt := ComposeSystemPrompt(nil)

	assert.Contains(t, prompt, noContextPlaceholder)
	assert.NotContains(t, prompt, "{context}")
}

func TestComposeSystemPromptOrderAndLabels(t *testing.T) {
	passages := []ragie.Passage{
		{Text: "alpha text", Source: "Doc1"},
		{Text: "beta text", Source: "Doc2"},
		{Text: "gamma text", Source: "Doc1"},
	}
	prompt := ComposeSystemPrompt(passages)

	// 1-based source indices with provenance labels, in ranking order.
	assert.Contains(t, prompt, "[Source 1: Doc1]\nalpha text")
	assert.Contains(t, prompt, "[Source 2: Doc2]\nbeta text")
	assert.Contains(t, prompt, "[Source 3: Doc1]\ngamma text")
	assert.Less(t,
		strings.Index(prompt, "alpha text"),
		strings.Index(prompt, "beta text"))
	assert.Equal(t, 2, strings.Count(prompt, passageDelimiter))
	assert.NotContains(t, prompt, "{context}")
}

func TestSourceManifestDeduplicates(t *testing.T) {
	passages := []ragie.Passage{
		{Text: "a", Source: "Doc1"},
		{Text: "b", Source: "Doc2"},
		{Text: "c", Source: "Doc1"},
	}

	assert.Equal(t, []string{"Doc1", "Doc2"}, SourceManifest(passages))
}

func TestSourceManifestEmpty(t *testing.T) {
	manifest := SourceManifest(nil)
	assert.NotNil(t, manifest)
	assert.Empty(t, manifest)
}

func TestTruncateHistory(t *testing.T) {
	short := []Message{{Role: "user", Content: "hi"}}
	assert.Equal(t, short, TruncateHistory(short))

	var long []Message
	for i := 0; i < 15; i++ {
		long = append(long, Message{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}
	got := TruncateHistory(long)
	assert.Len(t, got, historyWindow)
	assert.Equal(t, "turn 5", got[0].Content)
	assert.Equal(t, "turn 14", got[len(got)-1].Content)
}

func TestTruncateHistoryExactWindow(t *testing.T) {
	var history []Message
	for i := 0; i < historyWindow; i++ {
		history = append(history, Message{Role: "assistant", Content: fmt.Sprintf("turn %d", i)})
	}
	assert.Equal(t, history, TruncateHistory(history))
}
