package s3client

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFileHashes(t *testing.T) {
	content := []byte("hello world, this is a test file for hashing.")
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-hash-*.txt")
	require.NoError(t, err)
	defer tmpfile.Close()

	_, err = tmpfile.Write(content)
	require.NoError(t, err)
	_, err = tmpfile.Seek(0, 0)
	require.NoError(t, err)

	md5b64, sha256hex, err := calculateFileHashes(tmpfile)
	assert.NoError(t, err)

	expectedMD5 := md5.Sum(content)
	expectedSHA256 := sha256.Sum256(content)
	assert.Equal(t, base64.StdEncoding.EncodeToString(expectedMD5[:]), md5b64, "MD5 hash should match")
	assert.Equal(t, hex.EncodeToString(expectedSHA256[:]), sha256hex, "SHA256 hash should match")
}

func TestCalculateFileHashes_EmptyFile(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-hash-empty-*.txt")
	require.NoError(t, err)
	defer tmpfile.Close()

	md5b64, sha256hex, err := calculateFileHashes(tmpfile)
	assert.NoError(t, err)
	assert.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", md5b64, "MD5 hash for empty file should match")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sha256hex, "SHA256 hash for empty file should match")
}

func TestObjectName(t *testing.T) {
	testCases := []struct {
		prefix, rel, want string
	}{
		{"", "a/b.cidx", "a/b.cidx"},
		{"indexes", "a/b.cidx", "indexes/a/b.cidx"},
		{"indexes/", "./a//b.cidx", "indexes/a/b.cidx"},
		{"x", "../../etc/passwd.cidx", "x/etc/passwd.cidx"},
		{"", `dir\file.cidx`, "dir/file.cidx"},
	}
	for _, tc := range testCases {
		t.Run(tc.rel, func(t *testing.T) {
			assert.Equal(t, tc.want, ObjectName(tc.prefix, tc.rel))
		})
	}
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Endpoint: "localhost:9000"}.Enabled())
	assert.True(t, Config{Endpoint: "localhost:9000", Bucket: "idx"}.Enabled())
}

func TestUploadFile_MissingFile(t *testing.T) {
	core, err := NewCore(Config{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk"})
	require.NoError(t, err)

	_, err = UploadFile(context.Background(), core, "bucket", "obj", filepath.Join(t.TempDir(), "missing"), miniogo.PutObjectOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
