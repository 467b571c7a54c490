package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "idempotency-table", 48*time.Hour)

	ctx := context.Background()
	key := ScopedKey("u1", "test-key-1")

	created, err := s.CreateIfNotExists(ctx, key)
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second create should return created=false (exists)
	created2, err := s.CreateIfNotExists(ctx, key)
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.ExpiresAt <= time.Now().Unix() {
		t.Fatalf("expected expiry in the future, got %d", rec.ExpiresAt)
	}

	if err := s.MarkDone(ctx, key, "order-123", `{"orderId":"order-123"}`, 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	// Read raw item from mock to assert updated fields
	item := mock.table[key]
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	rec, err = s.Get(ctx, key)
	if err != nil || rec.OrderID != "order-123" || rec.ResponseStatus != 201 {
		t.Fatalf("unexpected record after MarkDone: %+v, %v", rec, err)
	}

	// DONE keys are not reclaimable
	if created, _ := s.CreateIfNotExists(ctx, key); created {
		t.Fatalf("DONE key must not be reclaimed")
	}

	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	if st := mock.table[key]["status"].(*types.AttributeValueMemberS); st.Value != StatusFailed {
		t.Fatalf("expected FAILED, got %s", st.Value)
	}
}

func TestCreateIfNotExists_ReclaimsFailed(t *testing.T) {
	mock := newSimpleMock()
	s := NewDynamoStore(mock, "idempotency-table", time.Hour)
	ctx := context.Background()

	if _, err := s.CreateIfNotExists(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, "k", "boom"); err != nil {
		t.Fatal(err)
	}
	created, err := s.CreateIfNotExists(ctx, "k")
	if err != nil {
		t.Fatalf("reclaim error: %v", err)
	}
	if !created {
		t.Fatalf("expected FAILED key to be reclaimed")
	}
	rec, _ := s.Get(ctx, "k")
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS after reclaim, got %s", rec.Status)
	}
}

func TestGet_Missing(t *testing.T) {
	s := NewDynamoStore(newSimpleMock(), "idempotency-table", time.Hour)
	rec, err := s.Get(context.Background(), "nope")
	if err != nil || rec != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", rec, err)
	}
}

func TestMarkDone_UnknownKey(t *testing.T) {
	s := NewDynamoStore(newSimpleMock(), "idempotency-table", time.Hour)
	if err := s.MarkDone(context.Background(), "ghost", "o", "{}", 201); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCreateIfNotExists_PropagatesErrors(t *testing.T) {
	mock := newSimpleMock()
	mock.failNext = errors.New("throttled")
	s := NewDynamoStore(mock, "idempotency-table", time.Hour)
	if _, err := s.CreateIfNotExists(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}
