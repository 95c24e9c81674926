package streamtest

import (
	"bytes"
	"errors"
	"testing"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbendeb/opentitan/devicedef"
	"github.com/vbendeb/opentitan/framework"
	"github.com/vbendeb/opentitan/mockdev"
	"github.com/vbendeb/opentitan/usbstream"
)

func TestOpenStreamsAnnouncesLayout(t *testing.T) {
	factory := mockdev.NewMockFactory()
	var out bytes.Buffer
	ctx := StreamTestContext{Factory: factory, Output: &out}.withDefaults()

	specs := []StreamSpec{
		{Index: 0, Type: devicedef.TransferTypeBulk},
		{Index: 1, Type: devicedef.TransferTypeSerial},
	}
	streams, err := OpenStreams(ctx, specs, 0x800)
	require.NoError(t, err)
	require.Len(t, streams, 2)

	assert.Equal(t, "S0: Bulk\nS1: Serial\n", out.String())
	m.In(t).Assert(factory.Opened, m.Items(
		m.Equal(mockdev.OpenRequest{Index: 0, Type: devicedef.TransferTypeBulk}),
		m.Equal(mockdev.OpenRequest{Index: 1, Type: devicedef.TransferTypeSerial}),
	))
	assert.Equal(t, uint32(0x800), factory.Streams[0].TransferTotal)
	assert.Equal(t, uint32(0x800), factory.Streams[1].TransferTotal)
}

func TestOpenStreamsRollsBackOnFailure(t *testing.T) {
	factory := mockdev.NewMockFactory()
	factory.FailAtIndex = 2
	factory.OpenErr = errors.New("no endpoint")

	var stops []int
	for i := 0; i < 2; i++ {
		index := i
		factory.Streams[index] = &mockdev.MockStream{
			Index:  index,
			OnStop: func() { stops = append(stops, index) },
		}
	}
	ctx := StreamTestContext{Factory: factory, Output: &bytes.Buffer{}}.withDefaults()

	specs := []StreamSpec{
		{Index: 0, Type: devicedef.TransferTypeBulk},
		{Index: 1, Type: devicedef.TransferTypeBulk},
		{Index: 2, Type: devicedef.TransferTypeBulk},
	}
	streams, err := OpenStreams(ctx, specs, 0x800)
	require.Error(t, err)
	assert.Nil(t, streams)

	var openErr OpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, 2, openErr.Index)
	assert.Equal(t, devicedef.TransferTypeBulk, openErr.Type)
	assert.ErrorIs(t, err, factory.OpenErr)

	assert.Equal(t, []int{1, 0}, stops)
	assert.Equal(t, 1, factory.Streams[0].StopCalls)
	assert.Equal(t, 1, factory.Streams[1].StopCalls)
}

func TestOpenStreamsLogsRollbackStopFailures(t *testing.T) {
	factory := mockdev.NewMockFactory()
	factory.FailAtIndex = 1
	factory.OpenErr = errors.New("no endpoint")
	factory.Streams[0] = &mockdev.MockStream{StopErr: errors.New("already gone")}

	var log framework.CapturingLogger
	ctx := StreamTestContext{Factory: factory, Output: &bytes.Buffer{}, Logger: &log}.withDefaults()

	_, err := OpenStreams(ctx, []StreamSpec{
		{Index: 0, Type: devicedef.TransferTypeBulk},
		{Index: 1, Type: devicedef.TransferTypeBulk},
	}, 0x100)
	require.Error(t, err)

	output := log.Output().ToString("")
	assert.Contains(t, output, "stopping stream 0 during rollback")
	assert.Contains(t, output, "already gone")
}

func TestStopAllKeepsGoing(t *testing.T) {
	s0 := &mockdev.MockStream{StopErr: errors.New("stalled")}
	s1 := &mockdev.MockStream{Index: 1}
	var log framework.CapturingLogger
	ctx := StreamTestContext{Logger: &log}.withDefaults()

	StopAll(ctx, []usbstream.Stream{s0, s1})

	assert.Equal(t, 1, s0.StopCalls)
	assert.Equal(t, 1, s1.StopCalls)
	assert.Contains(t, log.Output().ToString(""), "stopping stream 0")
}
