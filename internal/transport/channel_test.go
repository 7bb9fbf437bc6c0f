package transport

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
)

func newTestChannel(d *fakeDialer, s *fakeScheduler, l Launcher) (*Channel, *monitoring.Metrics) {
	metrics := monitoring.NewMetrics()
	ch := New(Options{
		URL:               "ws://127.0.0.1:6789",
		ReconnectInterval: 5 * time.Second,
		Dialer:            d,
		Scheduler:         s,
		Launcher:          l,
		Metrics:           metrics,
	})
	return ch, metrics
}

func TestReconnectStormLaunchesBackendOnce(t *testing.T) {
	dialer := &fakeDialer{}
	sched := &fakeScheduler{}
	launcher := &countingLauncher{}
	ch, metrics := newTestChannel(dialer, sched, launcher)

	require.Error(t, ch.Connect(context.Background()))
	require.True(t, sched.fireLast())
	require.True(t, sched.fireLast())

	assert.Equal(t, 3, dialer.dials)
	assert.Equal(t, 1, launcher.count(), "one launch per outage, not per retry")

	timers := sched.scheduled()
	require.Len(t, timers, 3)
	for _, tm := range timers {
		assert.Equal(t, 5*time.Second, tm.d)
	}
	assert.Equal(t, StateDisconnected, ch.State())
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ReconnectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackendLaunches))
}

func TestLaunchRearmsAfterSuccessfulConnection(t *testing.T) {
	first := newFakeConn()
	dialer := &fakeDialer{results: []any{errRefused, first, errRefused}}
	sched := &fakeScheduler{}
	launcher := &countingLauncher{}
	ch, _ := newTestChannel(dialer, sched, launcher)
	defer ch.Close()

	require.Error(t, ch.Connect(context.Background()))
	require.True(t, sched.fireLast())
	require.Equal(t, StateOpen, ch.State())

	// backend dies: close is observed, a reconnect is scheduled and fails
	first.Close()
	require.Eventually(t, func() bool { return ch.State() == StateDisconnected }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(sched.scheduled()) == 2 }, time.Second, time.Millisecond)
	require.True(t, sched.fireLast())

	assert.Equal(t, 2, launcher.count())
}

func TestManualConnectSupersedesPendingReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{results: []any{errRefused, conn}}
	sched := &fakeScheduler{}
	ch, _ := newTestChannel(dialer, sched, nil)
	defer ch.Close()

	require.Error(t, ch.Connect(context.Background()))
	pending := sched.scheduled()[0]

	require.NoError(t, ch.Connect(context.Background()))
	assert.True(t, pending.stopped, "manual connect must cancel the scheduled reconnect")
	assert.Equal(t, StateOpen, ch.State())
	assert.NotEmpty(t, ch.ConnID())

	// the superseded callback is inert even if it fires late
	pending.f()
	assert.Equal(t, 2, dialer.dials)
}

func TestConnectIsNoopWhenOpen(t *testing.T) {
	dialer := &fakeDialer{results: []any{newFakeConn()}}
	ch, _ := newTestChannel(dialer, &fakeScheduler{}, nil)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Connect(context.Background()))
	assert.Equal(t, 1, dialer.dials)
}

func TestSend(t *testing.T) {
	conn := newFakeConn()
	ch, metrics := newTestChannel(&fakeDialer{results: []any{conn}}, &fakeScheduler{}, nil)
	defer ch.Close()

	assert.ErrorIs(t, ch.Send(context.Background(), NewCancelRequest()), ErrNotConnected)

	require.NoError(t, ch.Connect(context.Background()))
	req := GenerationRequest{
		Command:        CommandImageToImage,
		InputPath:      "/tmp/temp_image_inpaint.png",
		PositivePrompt: "a cat",
		NegativePrompt: "blurry",
		SavePreviews:   true,
		WorkflowPath:   "/wf/inpaint.json",
	}
	require.NoError(t, ch.Send(context.Background(), req))
	require.NoError(t, ch.Send(context.Background(), NewCancelRequest()))

	frames := conn.textFrames()
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"command":"image_to_image","input_path":"/tmp/temp_image_inpaint.png",
		"positive_prompt":"a cat","negative_prompt":"blurry","save_previews":true,"workflow_path":"/wf/inpaint.json"}`, frames[0])
	assert.JSONEq(t, `{"command":"cancel"}`, frames[1])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("out", "cancel")))
}

func TestSendFailureDropsConnection(t *testing.T) {
	conn := newFakeConn()
	conn.failW = errRefused
	sched := &fakeScheduler{}
	ch, _ := newTestChannel(&fakeDialer{results: []any{conn}}, sched, nil)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	assert.Error(t, ch.Send(context.Background(), NewCancelRequest()))
	require.Eventually(t, func() bool { return ch.State() == StateDisconnected }, time.Second, time.Millisecond)
	assert.Len(t, sched.scheduled(), 1)
}

func TestInboundFramesReachQueueInOrder(t *testing.T) {
	conn := newFakeConn()
	ch, metrics := newTestChannel(&fakeDialer{results: []any{conn}}, &fakeScheduler{}, nil)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background()))

	conn.inbound <- []byte(`{"type":"progress","progress":50}`)
	conn.inbound <- []byte(`not json`)
	conn.inbound <- []byte(`{"status":"queued"}`)
	conn.inbound <- []byte(`{"status":"success","images":[{"image_data":"aGk="}]}`)

	first := <-ch.Messages()
	assert.Equal(t, KindProgress, first.Kind)
	assert.Equal(t, 50.0, first.Percent)

	second := <-ch.Messages()
	assert.Equal(t, KindSuccess, second.Kind)
	assert.Equal(t, []string{"aGk="}, second.Images)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProtocolDrops))
	assert.Equal(t, StateOpen, ch.State(), "bad frames never break the channel")
}

func TestCloseStopsReconnecting(t *testing.T) {
	sched := &fakeScheduler{}
	ch, _ := newTestChannel(&fakeDialer{}, sched, nil)

	require.Error(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Close())

	assert.True(t, sched.scheduled()[0].stopped)
	assert.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
	assert.Equal(t, StateDisconnected, ch.State())
	require.NoError(t, ch.Close())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "unknown", State(9).String())
}
