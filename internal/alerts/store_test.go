package alerts

import (
	"testing"
	"time"

	"banalert/internal/model"
)

func TestStoreKeepsNewest(t *testing.T) {
	s := NewStore(3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Add(model.Delivery{ID: string(rune('a' + i)), ReceivedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	list := s.List(0)
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "e" {
		t.Fatalf("unexpected contents: %+v", list)
	}
	if got := s.List(1); len(got) != 1 || got[0].ID != "e" {
		t.Fatalf("limit 1: %+v", got)
	}
	if got := s.Since(base.Add(3 * time.Minute)); len(got) != 2 {
		t.Fatalf("since: %d", len(got))
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("clear failed")
	}
}
