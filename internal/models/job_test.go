package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_Idempotent(t *testing.T) {
	once, err := NormalizeURL("HTTPS://Example.COM/products/42/?id=9&utm_source=x")
	require.NoError(t, err)

	twice, err := NormalizeURL(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestNormalizeURL_StripsTrailingSlashAndLowercasesHost(t *testing.T) {
	got, err := NormalizeURL("https://EXAMPLE.com/store/1/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/store/1", got)
}

func TestNormalizeURL_DropsNonAllowListedQueryParams(t *testing.T) {
	got, err := NormalizeURL("https://example.com/p?id=42&utm_campaign=x&session=y")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/p?id=42", got)
}

func TestNormalizeURL_RejectsMissingHost(t *testing.T) {
	_, err := NormalizeURL("/relative/path")
	assert.Error(t, err)
}

func TestJob_PartialNeverOverwritesFinal(t *testing.T) {
	j := NewJob("https://example.com/p", JobKindProduct, "")
	j.Complete([]byte(`{"final":true}`))

	j.SetPartial([]byte(`{"partial":true}`))

	require.NotNil(t, j.Result)
	assert.False(t, j.Result.IsPartial)
}

func TestJob_LiveAndTerminal(t *testing.T) {
	j := NewJob("https://example.com/p", JobKindProduct, "")
	assert.True(t, j.IsLive())
	assert.False(t, j.IsTerminal())

	j.Fail("204_NO_CONTENT")
	assert.False(t, j.IsLive())
	assert.True(t, j.IsTerminal())
}
