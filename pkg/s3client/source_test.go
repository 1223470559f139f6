package s3client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGetter is a mock implementation of ObjectGetter.
type MockGetter struct {
	mock.Mock
}

func (m *MockGetter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func TestParseSourceURL(t *testing.T) {
	testCases := []struct {
		arg     string
		want    SourceURL
		ok      bool
		wantErr bool
	}{
		{"s3://bucket/dir/file.bin", SourceURL{Bucket: "bucket", Key: "dir/file.bin"}, true, false},
		{"/local/file.bin", SourceURL{}, false, false},
		{"s3://bucket", SourceURL{}, true, true},
		{"s3://bucket/", SourceURL{}, true, true},
		{"s3:///key", SourceURL{}, true, true},
	}
	for _, tc := range testCases {
		t.Run(tc.arg, func(t *testing.T) {
			u, ok, err := ParseSourceURL(tc.arg)
			assert.Equal(t, tc.ok, ok)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, u)
		})
	}
	assert.Equal(t, "s3://b/k", SourceURL{Bucket: "b", Key: "k"}.String())
}

func TestOpenSource(t *testing.T) {
	body := []byte("object body")
	getter := new(MockGetter)
	getter.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == "b" && aws.ToString(in.Key) == "k"
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil)

	rc, size, err := OpenSource(context.Background(), getter, SourceURL{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(len(body)), size)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestOpenSource_Error(t *testing.T) {
	denied := errors.New("access denied")
	getter := new(MockGetter)
	getter.On("GetObject", mock.Anything, mock.Anything).Return(nil, denied)

	_, _, err := OpenSource(context.Background(), getter, SourceURL{Bucket: "b", Key: "k"})
	assert.ErrorIs(t, err, denied)
}

func TestNewSourceClient(t *testing.T) {
	client, err := NewSourceClient(context.Background(), "http://127.0.0.1:9000", "ak", "sk", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, client.Options().Region)
	assert.True(t, client.Options().UsePathStyle)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(client.Options().BaseEndpoint))
}
