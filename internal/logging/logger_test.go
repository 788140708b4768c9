package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestNewWithWriterWritesWholeLines hammers one writer from many goroutines and
// checks every line decodes as a complete JSON entry.
func TestNewWithWriterWritesWholeLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)

	const goroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			l := logger.Named("worker").With(zap.Int("index", g))
			for i := 0; i < perGoroutine; i++ {
				l.Info(fmt.Sprintf("handling article %d", i))
			}
		}(g)
	}
	wg.Wait()

	lines := 0
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), scanner.Text())
		require.Equal(t, "worker", entry["logger"])
		require.Contains(t, entry, "ts")
		lines++
	}
	require.Equal(t, goroutines*perGoroutine, lines)
}

func TestNewWithWriterDevelopmentIncludesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)
	logger.Debug("dispatcher state changed", zap.String("to", "running"))

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Contains(t, out, "DEBUG")
	require.Contains(t, out, "dispatcher state changed")
}
