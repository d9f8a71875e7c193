package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueRequest_RejectsMissingURL(t *testing.T) {
	req := enqueueRequest{Kind: "product"}
	assert.Error(t, validate.Struct(req))
}

func TestEnqueueRequest_RejectsUnknownKind(t *testing.T) {
	req := enqueueRequest{URL: "https://example.com/p/1", Kind: "widget"}
	assert.Error(t, validate.Struct(req))
}

func TestEnqueueRequest_AcceptsWellFormedRequest(t *testing.T) {
	req := enqueueRequest{URL: "https://example.com/p/1", Kind: "product"}
	assert.NoError(t, validate.Struct(req))
}

func TestEnqueueRequest_AcceptsEphemeralProxy(t *testing.T) {
	req := enqueueRequest{URL: "https://example.com/store/1", Kind: "store", EphemeralProxy: "socks5://127.0.0.1:1080"}
	assert.NoError(t, validate.Struct(req))
}
