package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

func TestParseRole(t *testing.T) {
	cases := map[string]domain.Role{
		"user":       domain.RoleUser,
		" Assistant": domain.RoleAssistant,
		"model":      domain.RoleAssistant,
		"SYSTEM":     domain.RoleSystem,
	}
	for in, want := range cases {
		got, err := domain.ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.True(t, got.Valid())
	}

	_, err := domain.ParseRole("agent")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
	assert.False(t, domain.Role("agent").Valid())
}

func TestErrorWrappers(t *testing.T) {
	base := errors.New("connection refused")

	perr := &domain.PersistenceError{Op: "append user message", Err: base}
	assert.ErrorIs(t, perr, base)
	assert.Contains(t, perr.Error(), "append user message")

	var target *domain.ProviderError
	wrapped := errors.Join(errors.New("outer"), &domain.ProviderError{Provider: "gemini", Err: base})
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "gemini", target.Provider)

	assert.True(t, domain.IsNotFound(domain.ErrChatNotFound))
	assert.True(t, domain.IsNotFound(errors.Join(domain.ErrMessageNotFound)))
	assert.False(t, domain.IsNotFound(base))
}

func TestMessageCloneIsIndependent(t *testing.T) {
	m := &domain.Message{ID: "1", Content: "hola"}
	cp := m.Clone()
	cp.Content = "changed"
	assert.Equal(t, "hola", m.Content)

	var nilMsg *domain.Message
	assert.Nil(t, nilMsg.Clone())
}
