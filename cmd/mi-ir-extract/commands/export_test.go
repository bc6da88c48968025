package commands

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewForTests returns an App whose command line is args.
func NewForTests(t *testing.T, args ...string) *App {
	t.Helper()

	app, err := New()
	require.NoError(t, err, "Setup: could not create app")

	app.cmd.SetArgs(args)
	return app
}

// Workers returns the number of workers of the loaded configuration.
func (a App) Workers() int {
	return a.config.Workers
}

// DecryptKey returns the decryption key of the loaded configuration.
func (a App) DecryptKey() string {
	return a.config.DecryptKey
}

// SetOutput redirects the output of every command to the returned buffer.
func (a *App) SetOutput(t *testing.T) *SyncBuffer {
	t.Helper()

	out := &SyncBuffer{}
	a.cmd.SetOut(out)
	a.cmd.SetErr(out)
	return out
}

// SyncBuffer is a bytes.Buffer safe for concurrent use.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
