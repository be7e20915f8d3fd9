package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head>
<script id="config">{"a":1}</script>
<script>window.other = {};</script>
<script>window.netflix = {};reactContext = {"models":{}};</script>
</head><body></body></html>`

func TestScriptByID(t *testing.T) {
	body, ok := ScriptByID(page, "config")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, body)

	_, ok = ScriptByID(page, "missing")
	assert.False(t, ok)
}

func TestScriptContaining(t *testing.T) {
	body, ok := ScriptContaining(page, "window.netflix")
	require.True(t, ok)
	assert.Contains(t, body, "reactContext")

	_, ok = ScriptContaining(page, "nope")
	assert.False(t, ok)
}

func TestFixHexEscapes(t *testing.T) {
	assert.Equal(t, `{"title":"Amélie"}`, FixHexEscapes(`{"title":"Am\xe9lie"}`))
	assert.Equal(t, `a<b>c`, FixHexEscapes(`a\x3cb\x3ec`))
	// Untouched content passes through, including lone backslashes.
	assert.Equal(t, `plain \n text \x`, FixHexEscapes(`plain \n text \x`))
}
