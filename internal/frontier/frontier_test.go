package frontier_test

import (
	"testing"

	"github.com/crawlstack/sitecrawl/internal/frontier"
)

func TestFrontier_EnqueueDequeueOrder(t *testing.T) {
	f := frontier.New()
	f.Enqueue("https://e.com/a", 0)
	f.Enqueue("https://e.com/b", 1)

	first, ok := f.Dequeue()
	if !ok || first.URL != "https://e.com/a" || first.Depth != 0 {
		t.Fatalf("unexpected first token: %+v, ok=%v", first, ok)
	}

	second, ok := f.Dequeue()
	if !ok || second.URL != "https://e.com/b" || second.Depth != 1 {
		t.Fatalf("unexpected second token: %+v, ok=%v", second, ok)
	}

	if _, ok := f.Dequeue(); ok {
		t.Fatal("expected empty frontier")
	}
}

func TestFrontier_VisitedIsAbsorbing(t *testing.T) {
	f := frontier.New()

	if f.HasVisited("https://e.com/a") {
		t.Fatal("should not be visited yet")
	}

	f.Visit("https://e.com/a")

	if !f.HasVisited("https://e.com/a") {
		t.Fatal("should be visited")
	}
	if f.VisitedCount() != 1 {
		t.Errorf("VisitedCount = %d, want 1", f.VisitedCount())
	}

	// Visiting again must not grow the count.
	f.Visit("https://e.com/a")
	if f.VisitedCount() != 1 {
		t.Errorf("VisitedCount after repeat visit = %d, want 1", f.VisitedCount())
	}
}

func TestFrontier_HasPending(t *testing.T) {
	f := frontier.New()
	if f.HasPending() {
		t.Fatal("new frontier should have no pending tokens")
	}

	f.Enqueue("https://e.com/a", 0)
	if !f.HasPending() {
		t.Fatal("frontier should have a pending token")
	}

	f.Dequeue()
	if f.HasPending() {
		t.Fatal("frontier should be empty after dequeue")
	}
}
