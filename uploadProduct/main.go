package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/pkg/bootstrap"
	"gitlab.connectwisedev.com/backoffice-service/pkg/catalog"
	"gitlab.connectwisedev.com/backoffice-service/pkg/objectstore"
)

var (
	app     *bootstrap.App
	fetcher *objectstore.S3Fetcher
)

func init() {
	var err error
	app, err = bootstrap.New("upload-product")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if !app.Config.IsLocal() {
		fetcher, err = objectstore.NewDefaultS3Fetcher(context.Background())
		if err != nil {
			log.Fatalf("Failed to initialize S3 client: %v", err)
		}
	}
}

// S3EventWrapper is a custom struct to handle either S3 events or direct CSV payload
type S3EventWrapper struct {
	Records []events.S3EventRecord `json:"Records,omitempty"`
	CSVData string                 `json:"csv_data,omitempty"` // For local testing
}

func handler(ctx context.Context, event S3EventWrapper) (catalog.ImportResult, error) {
	csvContent, err := readPayload(ctx, event)
	if err != nil {
		return catalog.ImportResult{}, err
	}

	result, err := app.Catalog.ImportCSV(ctx, bytes.NewReader(csvContent))
	if err != nil {
		return catalog.ImportResult{}, err
	}
	for _, skipped := range result.Skipped {
		app.Logger.Warn("skipped CSV row", zap.Int("line", skipped.Line), zap.String("reason", skipped.Reason))
	}
	return result, nil
}

func readPayload(ctx context.Context, event S3EventWrapper) ([]byte, error) {
	switch {
	case len(event.Records) > 0:
		s3Record := event.Records[0].S3
		bucketName := s3Record.Bucket.Name
		key := s3Record.Object.Key
		app.Logger.Info("processing S3 event", zap.String("bucket", bucketName), zap.String("key", key))

		if app.Config.ImportBucket != "" && bucketName != app.Config.ImportBucket {
			return nil, fmt.Errorf("unexpected bucket %s, imports are read from %s", bucketName, app.Config.ImportBucket)
		}
		if fetcher == nil {
			app.Logger.Info("running locally, reading products.csv instead of S3")
			return os.ReadFile("products.csv")
		}
		return fetcher.Fetch(ctx, bucketName, key)
	case event.CSVData != "":
		app.Logger.Info("processing direct CSV data payload")
		return []byte(event.CSVData), nil
	default:
		return nil, fmt.Errorf("no S3 event record or direct CSV data found in the payload")
	}
}

func main() {
	defer app.Close()
	lambda.Start(handler)
}
