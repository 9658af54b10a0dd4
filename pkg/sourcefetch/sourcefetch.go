// Package sourcefetch stages a remote source to a local path before the
// demuxer opens it. Grounded on the teacher's
// pkg/videoFs/downloadSegmentFromS3.go, narrowed from "download a
// paginated segment of a collection" to "stage one object referenced by
// an s3:// URL", which is all SPEC_FULL.md's single-source player needs.
package sourcefetch

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Resolve returns a local filesystem path the demuxer can open. A plain
// path or file:// URL passes through unchanged; an s3://bucket/key URL is
// downloaded into cacheDir first.
func Resolve(source, cacheDir string) (string, error) {
	if !strings.HasPrefix(source, "s3://") {
		return strings.TrimPrefix(source, "file://"), nil
	}
	return downloadS3(source, cacheDir)
}

func downloadS3(source, cacheDir string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("sourcefetch: parse %q: %w", source, err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", fmt.Errorf("sourcefetch: %q is not bucket/key shaped", source)
	}

	region := os.Getenv("AWS_DEFAULT_REGION")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if region == "" || accessKey == "" || secretKey == "" {
		return "", fmt.Errorf("sourcefetch: missing one or more of AWS_DEFAULT_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	})
	if err != nil {
		return "", fmt.Errorf("sourcefetch: open AWS session: %w", err)
	}

	if err := os.MkdirAll(cacheDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("sourcefetch: create cache dir: %w", err)
	}
	localPath := filepath.Join(cacheDir, filepath.Base(key))

	client := s3.New(sess)
	result, err := client.GetObject(&s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return "", fmt.Errorf("sourcefetch: get s3://%s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("sourcefetch: create %s: %w", localPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, result.Body)
	if err != nil {
		return "", fmt.Errorf("sourcefetch: write %s: %w", localPath, err)
	}
	log.Printf("sourcefetch: staged s3://%s/%s -> %s (%d bytes)", bucket, key, localPath, n)
	return localPath, nil
}
