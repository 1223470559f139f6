package cdc

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSink is a mock implementation of Sink.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Append(e BlockEntry) error {
	args := m.Called(e)
	return args.Error(0)
}

func (m *MockSink) Finalize(h Header) error {
	args := m.Called(h)
	return args.Error(0)
}

func TestScan_Collect(t *testing.T) {
	p := testParams()
	data := randomData(17, 128*1024)

	var sink Collect
	h, err := Scan(context.Background(), bytes.NewReader(data), &sink, p, MD5Digest)
	require.NoError(t, err)

	assert.True(t, sink.Done)
	assert.Equal(t, h, sink.Header)
	assert.Equal(t, p.TargetBlockSize(), h.TargetBlockSize)
	assert.Equal(t, uint32(len(sink.Entries)), h.BlockCount)
	assertPartition(t, data, sink.Entries, p)

	want, _ := chunkAll(t, bytes.NewReader(data), p)
	assert.Equal(t, want, sink.Entries)
}

func TestScan_EmptySource(t *testing.T) {
	var sink Collect
	h, err := Scan(context.Background(), bytes.NewReader(nil), &sink, testParams(), nil)
	require.NoError(t, err)
	assert.True(t, sink.Done)
	assert.Equal(t, uint32(0), h.BlockCount)
	assert.Empty(t, sink.Entries)
}

func TestScan_InvalidParams(t *testing.T) {
	p := testParams()
	p.AvgDivisor = 0
	_, err := Scan(context.Background(), bytes.NewReader(nil), &Collect{}, p, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sink Collect
	_, err := Scan(ctx, bytes.NewReader(randomData(1, 4096)), &sink, testParams(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, sink.Done, "a cancelled scan must not finalize")
}

func TestScan_AppendFailure(t *testing.T) {
	sink := new(MockSink)
	diskFull := errors.New("disk full")
	sink.On("Append", mock.AnythingOfType("cdc.BlockEntry")).Return(nil).Once()
	sink.On("Append", mock.AnythingOfType("cdc.BlockEntry")).Return(diskFull).Once()

	p := testParams()
	p.AvgDivisor, p.BoundaryRemainder = 1, 0
	_, err := Scan(context.Background(), bytes.NewReader(randomData(2, 10*p.MinChunk)), sink, p, nil)

	assert.ErrorIs(t, err, ErrIndexWrite)
	assert.ErrorIs(t, err, diskFull)
	sink.AssertNumberOfCalls(t, "Append", 2)
	sink.AssertNotCalled(t, "Finalize", mock.Anything)
}

func TestScan_FinalizeFailure(t *testing.T) {
	sink := new(MockSink)
	sink.On("Append", mock.Anything).Return(nil)
	sink.On("Finalize", mock.MatchedBy(func(h Header) bool { return h.BlockCount == 1 })).Return(errors.New("seek failed"))

	_, err := Scan(context.Background(), bytes.NewReader([]byte("short")), sink, testParams(), nil)
	assert.ErrorIs(t, err, ErrIndexWrite)
	sink.AssertExpectations(t)
}

func TestScan_SourceFailure(t *testing.T) {
	sink := new(MockSink)
	sink.On("Append", mock.Anything).Return(nil)

	boom := errors.New("io error")
	_, err := Scan(context.Background(), &failingReader{data: randomData(3, 3000), err: boom}, sink, testParams(), nil)
	assert.ErrorIs(t, err, ErrSourceRead)
	assert.ErrorIs(t, err, boom)
	sink.AssertNotCalled(t, "Finalize", mock.Anything)
}

func TestMultiSink(t *testing.T) {
	var a, b Collect
	sink := MultiSink(&a, nil, MultiSink(&b))

	data := randomData(4, 32*1024)
	h, err := Scan(context.Background(), bytes.NewReader(data), sink, testParams(), nil)
	require.NoError(t, err)

	assert.True(t, a.Done)
	assert.True(t, b.Done)
	assert.Equal(t, h, b.Header)
	assert.Equal(t, a.Entries, b.Entries)
}

func TestMultiSink_StopsAtFirstFailure(t *testing.T) {
	failing := new(MockSink)
	full := errors.New("full")
	failing.On("Append", mock.Anything).Return(full)
	last := new(MockSink)

	var first Collect
	err := MultiSink(&first, failing, last).Append(BlockEntry{Length: 1})
	assert.ErrorIs(t, err, full)
	assert.Len(t, first.Entries, 1)
	last.AssertNotCalled(t, "Append", mock.Anything)
}
