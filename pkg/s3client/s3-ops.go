package s3client

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zhengshuai-xiao/cdcidx/internal"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
)

var logger = internal.GetLogger("s3client")

const ContentType = "application/x-cdc-index"

// Config holds the connection settings for the bucket indexes are published to.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Prefix    string
}

func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

func NewCore(cfg Config) (*miniogo.Core, error) {
	core, err := miniogo.NewCore(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client for %s: %w", cfg.Endpoint, err)
	}
	return core, nil
}

// ObjectName maps an index path relative to the output root to its object key.
func ObjectName(prefix, rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// UploadIndex publishes a finalized index file. The header is copied into
// the object's user metadata.
func UploadIndex(ctx context.Context, core *miniogo.Core, bucket, object, localFilePath string, h cdc.Header) (miniogo.UploadInfo, error) {
	opts := miniogo.PutObjectOptions{
		ContentType: ContentType,
		UserMetadata: map[string]string{
			"target-block-size": strconv.FormatUint(uint64(h.TargetBlockSize), 10),
			"block-count":       strconv.FormatUint(uint64(h.BlockCount), 10),
		},
	}
	info, err := UploadFile(ctx, core, bucket, object, localFilePath, opts)
	if err != nil {
		return info, err
	}
	logger.Infof("uploaded %s to %s/%s (%d bytes, etag %s)", localFilePath, bucket, object, info.Size, info.ETag)
	return info, nil
}

// UploadFile uploads a local file with its MD5 and SHA256 so the server can
// reject a corrupted body.
func UploadFile(ctx context.Context, core *miniogo.Core, bucket, object, localFilePath string, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	file, err := os.Open(localFilePath)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to open file[%s]: %w", localFilePath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to stat file[%s]: %w", localFilePath, err)
	}
	fileSize := fileInfo.Size()

	md5Hash, sha256Hash, err := calculateFileHashes(file)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to calc hash: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	uploadInfo, err := core.PutObject(ctx, bucket, object, file, fileSize, md5Hash, sha256Hash, opts)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to upload file[%s]: %w", localFilePath, err)
	}
	return uploadInfo, nil
}

func calculateFileHashes(file io.Reader) (md5Base64 string, sha256Hex string, err error) {
	md5Hasher := md5.New()
	sha256Hasher := sha256.New()

	multiWriter := io.MultiWriter(md5Hasher, sha256Hasher)
	if _, err := io.Copy(multiWriter, file); err != nil {
		return "", "", err
	}

	md5Base64 = base64.StdEncoding.EncodeToString(md5Hasher.Sum(nil))
	sha256Hex = hex.EncodeToString(sha256Hasher.Sum(nil))
	return md5Base64, sha256Hex, nil
}
