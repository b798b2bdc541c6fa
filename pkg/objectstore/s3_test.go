package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	gotKey  string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(in.Key)
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+f.gotKey]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestFetchDecodesKey(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"imports/price list.csv": "name,price\nPie,30\n"}}

	body, err := NewS3Fetcher(fake).Fetch(context.Background(), "imports", "price+list.csv")
	require.NoError(t, err)
	assert.Equal(t, "price list.csv", fake.gotKey)
	assert.Equal(t, "name,price\nPie,30\n", string(body))
}

func TestFetchMissingObject(t *testing.T) {
	_, err := NewS3Fetcher(&fakeS3{}).Fetch(context.Background(), "imports", "missing.csv")
	assert.ErrorContains(t, err, "s3://imports/missing.csv")
}
