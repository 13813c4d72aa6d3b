package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelReplyPrependsMissingLabel(t *testing.T) {
	assert.Equal(t, "AI: hello", LabelReply("  hello  ", "AI"))
}

func TestLabelReplyKeepsExistingLabel(t *testing.T) {
	assert.Equal(t, "AI: hello", LabelReply("\nAI: hello", "AI"))
}

func TestLabelReplyMatchesCaseInsensitively(t *testing.T) {
	assert.Equal(t, "ai: hello", LabelReply("ai: hello", "AI"))
}

func TestLabelReplyEmptyContent(t *testing.T) {
	assert.Equal(t, "AI: ", LabelReply("   ", "AI"))
}

func TestLabelsFor(t *testing.T) {
	labels := DefaultLabels()

	assert.Equal(t, "SYSTEM", labels.For(RoleSystem))
	assert.Equal(t, "USER", labels.For(RoleUser))
	assert.Equal(t, "AI", labels.For(RoleAssistant))
}
