package mastercontract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/ports"
)

// S3Loader periodically refreshes a SQLiteCache from a CSV snapshot stored
// in S3: `broker_id,symbol,exchange,instrument_id,lot_size,tick_size`.
type S3Loader struct {
	downloader *manager.Downloader
	bucket     string
	key        string
	cache      *SQLiteCache
	log        ports.Logger
}

// NewS3Loader builds an S3Loader for the given bucket/key/region, writing
// refreshed rows into cache.
func NewS3Loader(ctx context.Context, bucket, key, region string, cache *SQLiteCache, log ports.Logger) (*S3Loader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("mastercontract: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Loader{
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		key:        key,
		cache:      cache,
		log:        log,
	}, nil
}

// writerAt adapts an in-memory buffer to io.WriterAt for the S3 downloader.
type writerAt struct {
	buf []byte
}

func (w *writerAt) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(w.buf) {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[off:end], p)
	return len(p), nil
}

// Refresh downloads the snapshot object and upserts every row into the cache.
func (l *S3Loader) Refresh(ctx context.Context) (int, error) {
	buf := &writerAt{}
	n, err := l.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		return 0, fmt.Errorf("mastercontract: download s3://%s/%s: %w", l.bucket, l.key, err)
	}

	reader := csv.NewReader(bytes.NewReader(buf.buf[:n]))
	reader.FieldsPerRecord = 6

	rows := 0
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		lotSize, _ := strconv.ParseInt(record[4], 10, 64)
		inst := domain.Instrument{
			Symbol:       record[1],
			Exchange:     domain.Exchange(record[2]),
			InstrumentID: record[3],
			LotSize:      lotSize,
			TickSize:     record[5],
		}
		if err := l.cache.Upsert(ctx, record[0], inst); err != nil {
			l.log.Warn("mastercontract", "upsert failed", map[string]any{"error": err.Error()})
			continue
		}
		rows++
	}
	return rows, nil
}
