package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/article-image-crawler/internal/progress"
)

func TestLogSinkWritesOneEntryPerEvent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	runID := uuid.New()
	batch := []progress.Event{
		{RunID: progress.UUIDToBytes(runID), TS: time.Now(), Stage: progress.StageItemStart, Title: "A"},
		{
			RunID:   progress.UUIDToBytes(runID),
			TS:      time.Now(),
			Stage:   progress.StageDownloadDone,
			Title:   "A",
			URL:     "https://habrastorage.org/a.jpg",
			Outcome: progress.OutcomeOK,
			Bytes:   10,
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("progress event").All()
	require.Len(t, entries, 2)
	fields := entries[1].ContextMap()
	require.Equal(t, runID.String(), fields["run_id"])
	require.Equal(t, string(progress.StageDownloadDone), fields["stage"])
	require.Equal(t, int64(10), fields["bytes"])
}

func TestNewLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageRunStart}}))
}
