package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIV1(t *testing.T) {
	assert.Equal(t, "https://llm.example/v1", apiV1("https://llm.example"))
	assert.Equal(t, "https://llm.example/v1", apiV1("https://llm.example/"))
	assert.Equal(t, "https://llm.example/v1", apiV1("https://llm.example/v1"))
	assert.Equal(t, "http://host:8000/proxy/v1", apiV1("http://host:8000/proxy"))
}

func TestKeyOrPlaceholder(t *testing.T) {
	assert.Equal(t, placeholderAPIKey, keyOrPlaceholder(""))
	assert.Equal(t, "k", keyOrPlaceholder("k"))
}
