/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config names the bucket an S3Source/S3Sink pair talks to. Region and
// credentials are resolved the standard way (environment, shared config,
// instance role) by config.LoadDefaultConfig.
type S3Config struct {
	Bucket string
}

// NewS3Client loads the default AWS configuration and returns a client
// for the region that configuration resolves.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg), nil
}

// S3Source downloads an object to a local temp file and exposes it as a
// faststart.Source. The box scanner needs random access (ReadAt); an S3
// GetObject response body is a forward-only stream, so staging to disk is
// required regardless of object size.
type S3Source struct {
	*LocalSource

	tmpPath string
}

// DownloadS3Source fetches bucket/key into a local temp file and wraps it
// as a random-access Source. Call Close to release the file handle and
// remove the temp file.
func DownloadS3Source(ctx context.Context, client *s3.Client, bucket, key string) (*S3Source, error) {
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 GetObject %s/%s: %w", bucket, key, err)
	}

	defer resp.Body.Close()

	tmp, err := os.CreateTemp("", "faststart-s3-src-*")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp for download: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return nil, fmt.Errorf("storage: download %s/%s: %w", bucket, key, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return nil, fmt.Errorf("storage: close downloaded temp file: %w", err)
	}

	local, err := OpenLocalSource(tmpPath)
	if err != nil {
		os.Remove(tmpPath)

		return nil, err
	}

	return &S3Source{LocalSource: local, tmpPath: tmpPath}, nil
}

// Close releases the underlying file handle and removes the temp file.
func (s *S3Source) Close() error {
	err := s.LocalSource.Close()
	os.Remove(s.tmpPath)

	return err
}

// S3Sink buffers optimized output in a local temp file, then uploads it
// to bucket/key on Commit. Uploading directly from the writer would
// require knowing the content length up front (PutObject) or managing a
// multipart upload; staging keeps the remux writer ignorant of S3.
type S3Sink struct {
	client  *s3.Client
	bucket  string
	key     string
	tmp     *os.File
	tmpPath string
}

// CreateS3Sink opens a local staging temp file for output destined for
// bucket/key.
func CreateS3Sink(client *s3.Client, bucket, key string) (*S3Sink, error) {
	tmp, err := os.CreateTemp("", "faststart-s3-dst-*")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp for upload staging: %w", err)
	}

	return &S3Sink{client: client, bucket: bucket, key: key, tmp: tmp, tmpPath: tmp.Name()}, nil
}

func (s *S3Sink) Write(p []byte) (int, error) {
	return s.tmp.Write(p)
}

// Name reports the destination S3 key, for ProgressListener.OnSuccess.
func (s *S3Sink) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// Commit uploads the staged temp file to S3 and removes it locally.
func (s *S3Sink) Commit(ctx context.Context) error {
	defer os.Remove(s.tmpPath)
	defer s.tmp.Close()

	if _, err := s.tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("storage: rewind staged upload: %w", err)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   s.tmp,
	})
	if err != nil {
		return fmt.Errorf("storage: s3 PutObject %s/%s: %w", s.bucket, s.key, err)
	}

	return nil
}

// Discard closes and removes the staging temp file without uploading.
func (s *S3Sink) Discard() {
	s.tmp.Close()
	os.Remove(s.tmpPath)
}
