package mongo

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"perfreview/internal/domain/performance"
	"perfreview/internal/domain/performance/storetest"
)

func TestStoreContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) performance.StoreAPI {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		database := "perfreview_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		store, err := Connect(ctx, uri, database)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = store.collection.Database().Drop(ctx)
			_ = store.Close(ctx)
		})
		return store
	})
}

func TestNextSeqIsStrictlyIncreasing(t *testing.T) {
	frozen := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	store := &Store{now: func() time.Time { return frozen }}

	first := store.nextSeq()
	second := store.nextSeq()
	if first != frozen.UnixNano() || second != first+1 {
		t.Fatalf("expected %d then %d, got %d then %d", frozen.UnixNano(), frozen.UnixNano()+1, first, second)
	}

	frozen = frozen.Add(-time.Hour)
	if third := store.nextSeq(); third != second+1 {
		t.Fatalf("a clock step back must not reorder inserts, got %d after %d", third, second)
	}
}
