// Package archive keeps an S3 audit trail of sweep reports.
//
// Layout under the bucket:
//
//	sweeps/v1/by-date/YYYY/MM/DD/HHMMSS-<sweep id>.json   one report per non-empty sweep
//	sweeps/v1/manifests/YYYY-MM.jsonl                     one line per report
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

const (
	recordVersion = "1.0"
	keyRoot       = "sweeps/v1"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SweepRecord is the archived form of one sweep.
type SweepRecord struct {
	Version string                `json:"version"`
	SweepID string                `json:"sweep_id"`
	Source  string                `json:"source"`
	AsOf    time.Time             `json:"as_of"`
	Result  reminders.SweepResult `json:"result"`
}

// ManifestEntry is one line of the monthly JSONL manifest.
type ManifestEntry struct {
	SweepID  string `json:"sweep_id"`
	S3Key    string `json:"s3_key"`
	Source   string `json:"source"`
	AsOf     string `json:"as_of"`
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
	Terminal int    `json:"terminal"`
	Skipped  int    `json:"skipped"`
}

func reportKey(asOf time.Time, sweepID string) string {
	return fmt.Sprintf("%s/by-date/%s-%s.json", keyRoot, asOf.Format("2006/01/02/150405"), sweepID)
}

func manifestKey(at time.Time) string {
	return fmt.Sprintf("%s/manifests/%s.jsonl", keyRoot, at.UTC().Format("2006-01"))
}

func newManifestEntry(rec SweepRecord, key string) ManifestEntry {
	e := ManifestEntry{
		SweepID: rec.SweepID,
		S3Key:   key,
		Source:  rec.Source,
		AsOf:    rec.AsOf.Format(time.RFC3339),
		Sent:    len(rec.Result.Sent),
		Failed:  len(rec.Result.Failed),
		Skipped: len(rec.Result.Skipped),
	}
	for _, it := range rec.Result.Failed {
		if it.Terminal {
			e.Terminal++
		}
	}
	return e
}

// Store archives sweep reports to S3.
type Store struct {
	bucket string
	client S3API
	source string
	newID  func() string
	logger *logging.Logger
}

// NewStore creates an archive Store. With an empty bucket every call is a no-op.
func NewStore(client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, client: client, source: "worker", newID: uuid.NewString, logger: logger}
}

// WithSource tags archived records with the process that ran the sweep.
func (s *Store) WithSource(source string) *Store {
	if source != "" {
		s.source = source
	}
	return s
}

func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.client != nil
}

// ArchiveSweep stores a non-empty sweep report and records it in the month's
// manifest. A manifest failure is logged; the report itself is already durable.
func (s *Store) ArchiveSweep(ctx context.Context, asOf time.Time, result reminders.SweepResult) error {
	if !s.Enabled() || result.Empty() {
		return nil
	}
	rec := SweepRecord{
		Version: recordVersion,
		SweepID: s.newID(),
		Source:  s.source,
		AsOf:    asOf.UTC(),
		Result:  result,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: marshal sweep: %w", err)
	}
	key := reportKey(rec.AsOf, rec.SweepID)
	if err := s.put(ctx, key, "application/json", data); err != nil {
		return err
	}

	entry := newManifestEntry(rec, key)
	s.logger.Info("sweep archived", "sweep_id", rec.SweepID, "s3_key", key,
		"sent", entry.Sent, "failed", entry.Failed, "skipped", entry.Skipped)

	if err := s.AppendManifest(ctx, rec.AsOf, entry); err != nil {
		s.logger.Warn("sweep manifest not updated", "sweep_id", rec.SweepID, "error", err)
	}
	return nil
}

// AppendManifest adds entry to the manifest for at's month. S3 has no append,
// so the object is read, extended and written back.
func (s *Store) AppendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	key := manifestKey(at)
	existing, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	if n := len(existing); n > 0 && existing[n-1] != '\n' {
		existing = append(existing, '\n')
	}
	body := append(append(existing, line...), '\n')
	return s.put(ctx, key, "application/x-ndjson", body)
}

// ReadManifest returns the entries recorded for at's month, oldest first.
func (s *Store) ReadManifest(ctx context.Context, at time.Time) ([]ManifestEntry, error) {
	if !s.Enabled() {
		return nil, nil
	}
	data, err := s.get(ctx, manifestKey(at))
	if err != nil {
		return nil, err
	}
	var out []ManifestEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e ManifestEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("archive: decode manifest line: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	return nil
}

// get returns nil data for a missing object.
func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
