package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestS3Storage_Contract(t *testing.T) {
	bucket := os.Getenv("CVIDEO_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("CVIDEO_TEST_S3_BUCKET env not set")
	}

	runStoreContract(t, func(t *testing.T) VideoStore {
		// A fresh prefix per subtest keeps runs isolated inside one bucket.
		store, err := NewS3Storage(context.Background(), S3Options{
			Bucket:   bucket,
			Prefix:   fmt.Sprintf("cvideo-test/%d", time.Now().UnixNano()),
			Region:   os.Getenv("CVIDEO_TEST_S3_REGION"),
			Endpoint: os.Getenv("CVIDEO_TEST_S3_ENDPOINT"),
		})
		require.NoError(t, err)
		return store
	})
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Options{})
	require.Error(t, err)
}
