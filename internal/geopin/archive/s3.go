package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"time"
)

const LatestName = "latest.json"

type Archive interface {
	Store(name string, s *model.Snapshot) error
	Load(name string) (*model.Snapshot, error)
}

type Snapshotter interface {
	Snapshot() (*model.Snapshot, error)
}

type S3Archive struct {
	log        *logrus.Entry
	config     *config.S3
	s3client   *s3.S3
	downloader *s3manager.Downloader
}

func NewS3Archive(c *config.Config, l *logrus.Entry) *S3Archive {
	if c.Archive.S3.Bucket == "" {
		l.Info("Snapshot archive disabled")
		return nil
	}
	s := S3Archive{}
	s.config = &c.Archive.S3
	s.log = l.WithField("source", "s3-archive")

	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(s.config.Key, s.config.Secret, ""),
		Endpoint:         aws.String(s.config.Endpoint),
		Region:           aws.String(s.config.Region),
		DisableSSL:       aws.Bool(s.config.DisableSSL),
		S3ForcePathStyle: aws.Bool(true),
	}
	newSession := session.Must(session.NewSession(s3Config))
	s3Client := s3.New(newSession)
	downloader := s3manager.NewDownloader(newSession)

	// auto create bucket if possible
	_, err := s3Client.CreateBucket(&s3.CreateBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		s.log.Trace("create bucket: ", err)
	}

	s.downloader = downloader
	s.s3client = s3Client
	return &s
}

func (a *S3Archive) Store(name string, snap *model.Snapshot) error {
	buf, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = a.s3client.PutObject(&s3.PutObjectInput{
		Body:        bytes.NewReader(buf),
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(name),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.log.Errorf("Failed to upload snapshot to %s/%s, %s", a.config.Bucket, name, err.Error())
		return err
	}
	a.log.WithField("name", name).WithField("pins", snap.Count).Info("Snapshot stored")
	return nil
}

func (a *S3Archive) Load(name string) (*model.Snapshot, error) {
	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := a.downloader.Download(buf, &s3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		a.log.Trace("Failed to download snapshot ", err)
		return nil, err
	}
	snap := model.Snapshot{}
	if err := json.Unmarshal(buf.Bytes(), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return &snap, nil
}

func (a *S3Archive) Delete(name string) error {
	_, err := a.s3client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(name),
	})
	return err
}

func SnapshotName(t time.Time) string {
	return fmt.Sprintf("geopin-%d.json", t.Unix())
}

// Save takes one snapshot and stores it under a timestamped name and as latest.
func Save(a Archive, s Snapshotter) (string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return "", err
	}
	name := SnapshotName(snap.Created)
	if err := a.Store(name, snap); err != nil {
		return "", err
	}
	return name, a.Store(LatestName, snap)
}

// Run saves a snapshot every interval until stop is closed.
func Run(a Archive, s Snapshotter, interval time.Duration, l *logrus.Entry, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := Save(a, s); err != nil {
				l.WithField("source", "s3-archive").Error(err)
			}
		}
	}
}
