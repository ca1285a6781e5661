package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessages(t *testing.T) {
	sys := NewSystemMessage(DefaultSystemPrompt)
	assert.Equal(t, RoleSystem, sys.Role)
	assert.Equal(t, "You are a helpful AI assistant.", sys.Content)
	assert.False(t, sys.Timestamp.IsZero())

	user := NewUserMessage("  hello there \n")
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "hello there", user.Content)

	assistant := NewAssistantMessage("hi")
	assert.Equal(t, RoleAssistant, assistant.Role)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleSystem))
	assert.True(t, ValidRole(RoleUser))
	assert.True(t, ValidRole(RoleAssistant))
	assert.False(t, ValidRole("tool"))
	assert.False(t, ValidRole(""))
}

func TestCloneMessages(t *testing.T) {
	orig := []Message{NewSystemMessage("a"), NewUserMessage("b")}
	clone := CloneMessages(orig)
	clone[1].Content = "changed"

	assert.Equal(t, "b", orig[1].Content)
	assert.Len(t, clone, 2)
}
