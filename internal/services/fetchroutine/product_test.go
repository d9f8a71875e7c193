package fetchroutine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitProductURL(t *testing.T) {
	cases := []struct {
		name          string
		url           string
		wantStore     string
		wantProductID string
	}{
		{"with id", "https://store.example/products?id=42", "https://store.example/products", "42"},
		{"no id", "https://store.example/products", "https://store.example/products", ""},
		{"id and noise stripped earlier", "https://store.example/p?id=7", "https://store.example/p", "7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, id := splitProductURL(tc.url)
			assert.Equal(t, tc.wantStore, store)
			assert.Equal(t, tc.wantProductID, id)
		})
	}
}

func TestClassifyExtractionError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"unsupported passthrough", errors.New("UNSUPPORTED_BROWSER: embedded state script not found"), "UNSUPPORTED_BROWSER: embedded state script not found"},
		{"navigate maps to proxy/network", errors.New("navigate: context deadline exceeded"), "PROXY_OR_NETWORK: navigate: context deadline exceeded"},
		{"everything else is other", errors.New("unmarshal embedded state: unexpected end of JSON input"), "OTHER: unmarshal embedded state: unexpected end of JSON input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyExtractionError(tc.err))
		})
	}
}
