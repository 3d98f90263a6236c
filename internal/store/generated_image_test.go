package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"pawtrait/internal/models"
)

func TestGeneratedImageStoreCreateAndFind(t *testing.T) {
	db := testDB(t)
	s := NewGeneratedImageStore(db)
	ctx := context.Background()
	st := testStyle(t, db)

	created, err := s.Create(ctx, &models.GeneratedImage{
		OriginalImageURL:  "s3://private/originals/a.jpg",
		GeneratedImageURL: "https://cdn.example.com/generated/a.png",
		StyleID:           st.ID,
		ProductID:         "778812345",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	found, err := s.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found == nil {
		t.Fatal("expected record, got nil")
	}
	if found.StyleID != st.ID || found.ProductID != "778812345" {
		t.Errorf("associations: got style=%s product=%s", found.StyleID, found.ProductID)
	}

	missing, _ := s.FindByID(ctx, uuid.New())
	if missing != nil {
		t.Error("expected nil for random UUID")
	}
}

func TestGeneratedImageStoreRejectsUnknownStyle(t *testing.T) {
	db := testDB(t)
	s := NewGeneratedImageStore(db)

	_, err := s.Create(context.Background(), &models.GeneratedImage{
		OriginalImageURL:  "a",
		GeneratedImageURL: "b",
		StyleID:           uuid.New(),
		ProductID:         "1",
	})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown style")
	}
}

func TestGeneratedImageStoreConcurrentInserts(t *testing.T) {
	db := testDB(t)
	s := NewGeneratedImageStore(db)
	st := testStyle(t, db)
	ctx := context.Background()

	const n = 10
	productID := "concurrent-" + uuid.NewString()[:8]

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := s.Create(ctx, &models.GeneratedImage{
				OriginalImageURL:  fmt.Sprintf("orig-%d", i),
				GeneratedImageURL: fmt.Sprintf("gen-%d", i),
				StyleID:           st.ID,
				ProductID:         productID,
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = g.ID
		}(i)
	}
	wg.Wait()

	seen := map[uuid.UUID]bool{}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("insert %d: %v", i, errs[i])
		}
		if seen[ids[i]] {
			t.Errorf("duplicate id %s", ids[i])
		}
		seen[ids[i]] = true
	}

	count, err := s.CountByProduct(ctx, productID)
	if err != nil {
		t.Fatalf("CountByProduct: %v", err)
	}
	if count != n {
		t.Errorf("count: got %d, want %d", count, n)
	}

	items, err := s.ListByProduct(ctx, productID, 3)
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("ListByProduct limit: got %d, want 3", len(items))
	}
}
