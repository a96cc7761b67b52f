package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestStartProgressDisabled(t *testing.T) {
	t.Parallel()

	sink, stop := startProgress(false, nil)
	require.Nil(t, sink)
	require.NotNil(t, stop)
	stop()
}

func TestStartProgressPublishesEvents(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	sink, stop := startProgress(true, out)
	require.NotNil(t, sink)

	for _, percent := range []int{0, 30, 55, 100} {
		require.NoError(t, sink.Publish(context.Background(), pipeline.Event{
			Stage:   pipeline.StageCorrection,
			Percent: percent,
			Message: "Correcting",
		}))
	}
	stop()
	stop()
}
