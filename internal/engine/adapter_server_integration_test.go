//go:build integration
// +build integration

package engine

import (
	"os"
	"testing"
	"time"
)

// Runs against a real KServe v2 server serving the translation model.
// Set TRANSLATORD_TEST_SERVER_URL and TRANSLATORD_TEST_SERVER_MODEL.
func TestServerAdapter_RealServerReady(t *testing.T) {
	url := os.Getenv("TRANSLATORD_TEST_SERVER_URL")
	model := os.Getenv("TRANSLATORD_TEST_SERVER_MODEL")
	if url == "" || model == "" {
		t.Skip("TRANSLATORD_TEST_SERVER_URL/MODEL not set")
	}
	a := NewServerAdapter(ServerOptions{BaseURL: url, Model: model, Timeout: 2 * time.Minute, ConnectTimeout: 5 * time.Second})
	if err := a.(Pinger).Ping(testCtx(t)); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
