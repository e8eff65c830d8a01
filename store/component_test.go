package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corepipeio/corepipe/ops"
	"github.com/corepipeio/corepipe/pipeline"
	"github.com/corepipeio/corepipe/ptime"
	"github.com/corepipeio/corepipe/scheduler"
	"github.com/corepipeio/corepipe/serialization"
	"github.com/corepipeio/corepipe/streams"
)

// TestImporterExporter_PersistAndReplaySum implements spec §8 scenario 1:
// write Range(1..100) to stream "seq" via an Exporter, reopen the store,
// sum the values via an Importer feeding ops.Do. Expected sum = 5050.
func TestImporterExporter_PersistAndReplaySum(t *testing.T) {
	dir := t.TempDir()
	serializer := serialization.New(nil)

	writer, err := CreateStore(dir, "seq", WriterConfig{})
	require.NoError(t, err)

	writeSched := scheduler.New()
	require.NoError(t, writeSched.Start(ptime.RealTimeClock(), false))
	writeCtx := writeSched.NewContext()

	exporter, err := NewExporter[int](writeCtx, writer, "seq", "int", "", nil, serializer)
	require.NoError(t, err)

	src := streams.NewEmitter[int](1, "range", writeCtx, 1)
	require.NoError(t, src.Subscribe(exporter.Receiver()))
	require.NoError(t, writeCtx.StartScheduling())

	for i := 1; i <= 100; i++ {
		require.NoError(t, src.Post(i, ptime.Time(i)))
	}
	src.Close()

	require.Eventually(t, exporter.Receiver().Closed, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, writeSched.Stop())
	require.NoError(t, writer.Close())

	reader, err := OpenStore(dir, "seq")
	require.NoError(t, err)

	p := pipeline.New("replay")
	importer, err := NewImporter[int](p.SchedulerContext(), 2, "seq-import", 1, reader, "seq", serializer)
	require.NoError(t, err)

	var mu sync.Mutex
	var sum int64
	recv, _ := ops.Do[int](p.SchedulerContext(), 3, "sum", 2, func(v int, _ ptime.Time) {
		mu.Lock()
		sum += int64(v)
		mu.Unlock()
	})
	require.NoError(t, importer.Emitter().Subscribe(recv))
	require.NoError(t, p.AddSource(importer))

	runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(runCtx, ptime.RealTimeClock(), false))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, int64(5050), sum)
}
