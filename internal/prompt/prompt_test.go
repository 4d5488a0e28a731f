package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptStyleOnly(t *testing.T) {
	got := BuildPrompt("estilo escandinavo")

	assert.True(t, strings.HasPrefix(got, BasePrompt))
	assert.Contains(t, got, "estilo escandinavo")
	assert.False(t, strings.HasSuffix(got, ","))
	assert.False(t, strings.HasSuffix(got, ", "))
	assert.Equal(t, BasePrompt+", estilo escandinavo", got)
}

func TestBuildPromptWithCustomText(t *testing.T) {
	got := BuildPrompt("estilo escandinavo", "con muchas plantas")

	assert.Equal(t, BasePrompt+", estilo escandinavo, con muchas plantas", got)
	assert.True(t, strings.HasSuffix(got, ", con muchas plantas"))
}

func TestBuildPromptIgnoresBlankCustomText(t *testing.T) {
	assert.Equal(t, BuildPrompt("estilo escandinavo"), BuildPrompt("estilo escandinavo", "   "))
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	assert.Equal(t, BuildPrompt("a", "b"), BuildPrompt("a", "b"))
}

func TestNegativePromptCoversArtifacts(t *testing.T) {
	for _, word := range []string{"borroso", "distorsionado", "personas", "animales", "marca de agua", "texto"} {
		assert.Contains(t, NegativePrompt, word)
	}
}

func TestEmbeddedCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	room, err := c.ParseRoomType("Living_Room")
	require.NoError(t, err)
	assert.Equal(t, "living_room", room.ID)

	style, err := c.Style("scandinavian")
	require.NoError(t, err)
	assert.Contains(t, style.Prompt, "estilo escandinavo")
	assert.Equal(t, "salón en "+style.Prompt, StylePrompt(room, style))
}

func TestParseRoomTypeRejectsUnknown(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	_, err = c.ParseRoomType("garage")
	require.True(t, errors.Is(err, ErrInvalidRoomType))

	_, err = c.Style("vaporwave")
	require.True(t, errors.Is(err, ErrUnknownStyle))
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog([]byte("rooms:\n  - id: a\n  - id: a\nstyles:\n  - id: s\n    prompt: p\n"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte("rooms: []\nstyles: []\n"))
	require.Error(t, err)
}
