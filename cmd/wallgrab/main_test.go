package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wallgrab/pkg/config"
)

func TestPromptQuery(t *testing.T) {
	var out bytes.Buffer
	q, err := promptQuery(strings.NewReader("  Initial D \n"), &out, true)
	require.NoError(t, err)
	assert.Equal(t, "Initial D", q)
	assert.Contains(t, out.String(), "Enter search term")

	out.Reset()
	q, err = promptQuery(strings.NewReader("AE86"), &out, false)
	require.NoError(t, err)
	assert.Equal(t, "AE86", q)
	assert.Empty(t, out.String())

	q, err = promptQuery(strings.NewReader(""), &out, false)
	require.NoError(t, err)
	assert.Empty(t, q)
}

func TestParseSources(t *testing.T) {
	assert.Nil(t, parseSources(nil))
	assert.Equal(t,
		[]string{"wallhaven", "reddit", "pexels"},
		parseSources([]string{"Wallhaven, reddit", "", "pexels,wallhaven"}))
}

func TestLimitsFor(t *testing.T) {
	assert.Nil(t, limitsFor([]string{"reddit"}, nil, 0))
	assert.Equal(t, map[string]int{"reddit": 5}, limitsFor([]string{"reddit"}, []string{"wallhaven"}, 5))
	assert.Equal(t,
		map[string]int{"wallhaven": 3, "unsplash": 3},
		limitsFor(nil, []string{"wallhaven", "unsplash"}, 3))
}

func TestDisplayAddr(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", displayAddr(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000", displayAddr("127.0.0.1:9000"))
}

func TestMaskedLeavesConfigUntouched(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources.Pexels.APIKey = "abcdefghijklmnop"

	display := masked(cfg)
	assert.Equal(t, "abcd...mnop", display.Sources.Pexels.APIKey)
	assert.Empty(t, display.Sources.Pixabay.APIKey)
	assert.Equal(t, "abcdefghijklmnop", cfg.Sources.Pexels.APIKey)
}

func TestCheckKeyedSource(t *testing.T) {
	name, err := checkKeyedSource("Pexels")
	require.NoError(t, err)
	assert.Equal(t, "pexels", name)

	_, err = checkKeyedSource("reddit")
	assert.Error(t, err)
}
