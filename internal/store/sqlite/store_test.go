package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insert(t *testing.T, s *Store, typ, id, visitor, collection string, at time.Time) {
	t.Helper()
	err := s.InsertView(context.Background(), domain.ViewRecord{
		ID:          uuid.New(),
		SubjectType: typ,
		SubjectID:   id,
		Visitor:     visitor,
		Collection:  collection,
		ViewedAt:    at,
	})
	if err != nil {
		t.Fatalf("InsertView: %v", err)
	}
}

func count(t *testing.T, s *Store, q domain.ViewQuery) int {
	t.Helper()
	n, err := s.CountViews(context.Background(), q)
	if err != nil {
		t.Fatalf("CountViews(%+v): %v", q, err)
	}
	return n
}

func hour(h int) time.Time {
	return time.Date(2018, 1, 1, h, 0, 0, 0, time.UTC)
}

func TestCountViews(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, "post", "1", "v1", "", hour(1))
	insert(t, s, "post", "1", "v1", "", hour(2))
	insert(t, s, "post", "1", "v2", "home", hour(3))
	insert(t, s, "post", "2", "", "", hour(3))
	insert(t, s, "video", "1", "v1", "", hour(3))

	start, end := hour(2), hour(3)
	before := hour(2)

	tests := []struct {
		name string
		q    domain.ViewQuery
		want int
	}{
		{"subject all time", domain.ViewQuery{SubjectType: "post", SubjectID: "1"}, 3},
		{"subject unique", domain.ViewQuery{SubjectType: "post", SubjectID: "1", Unique: true}, 2},
		{"since", domain.ViewQuery{SubjectType: "post", SubjectID: "1", Start: &start}, 2},
		{"upto inclusive", domain.ViewQuery{SubjectType: "post", SubjectID: "1", End: &before}, 2},
		{"between inclusive", domain.ViewQuery{SubjectType: "post", SubjectID: "1", Start: &start, End: &end}, 2},
		{"collection", domain.ViewQuery{SubjectType: "post", SubjectID: "1", Collection: "home"}, 1},
		{"type level", domain.ViewQuery{SubjectType: "post"}, 4},
		{"type level unique ignores null visitors", domain.ViewQuery{SubjectType: "post", Unique: true}, 2},
		{"other type", domain.ViewQuery{SubjectType: "video"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := count(t, s, tt.q); got != tt.want {
				t.Errorf("CountViews = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDeleteViews(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		insert(t, s, "post", "a", "v", "", hour(i))
	}
	insert(t, s, "post", "b", "v", "", hour(1))
	insert(t, s, "post", "b", "v", "", hour(2))

	n, err := s.DeleteViews(ctx, domain.ViewQuery{SubjectType: "post", SubjectID: "a"})
	if err != nil {
		t.Fatalf("DeleteViews: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted = %d, want 4", n)
	}
	if got := count(t, s, domain.ViewQuery{SubjectType: "post", SubjectID: "a"}); got != 0 {
		t.Errorf("a count = %d, want 0", got)
	}
	if got := count(t, s, domain.ViewQuery{SubjectType: "post", SubjectID: "b"}); got != 2 {
		t.Errorf("b count = %d, want 2", got)
	}
}

func TestDeleteViews_OlderThan(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, "post", "a", "v", "", hour(1))
	insert(t, s, "video", "b", "v", "", hour(2))
	insert(t, s, "post", "a", "v", "", hour(5))

	cutoff := hour(2)
	n, err := s.DeleteViews(context.Background(), domain.ViewQuery{End: &cutoff})
	if err != nil {
		t.Fatalf("DeleteViews: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
}

func TestTopSubjects(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, "post", "a", "v1", "", hour(1))
	insert(t, s, "post", "b", "v1", "", hour(1))
	insert(t, s, "post", "b", "v2", "", hour(2))
	insert(t, s, "post", "c", "v1", "", hour(1))
	insert(t, s, "post", "c", "v1", "", hour(2))
	insert(t, s, "post", "c", "v1", "", hour(3))
	insert(t, s, "post", "", "v1", "", hour(3))

	top, err := s.TopSubjects(context.Background(), domain.ViewQuery{SubjectType: "post"}, 2)
	if err != nil {
		t.Fatalf("TopSubjects: %v", err)
	}
	want := []domain.SubjectCount{{SubjectID: "c", Count: 3}, {SubjectID: "b", Count: 2}}
	if len(top) != len(want) {
		t.Fatalf("TopSubjects = %+v, want %+v", top, want)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("top[%d] = %+v, want %+v", i, top[i], want[i])
		}
	}

	unique, err := s.TopSubjects(context.Background(), domain.ViewQuery{SubjectType: "post", Unique: true}, 10)
	if err != nil {
		t.Fatalf("TopSubjects unique: %v", err)
	}
	if len(unique) != 3 || unique[0].SubjectID != "b" || unique[0].Count != 2 {
		t.Errorf("unique ranking = %+v, want b first with 2", unique)
	}
}

func TestInsertView_Duplicate(t *testing.T) {
	s := openTestStore(t)
	rec := domain.ViewRecord{ID: uuid.New(), SubjectType: "post", SubjectID: "1", ViewedAt: hour(1)}

	if err := s.InsertView(context.Background(), rec); err != nil {
		t.Fatalf("first InsertView: %v", err)
	}
	if err := s.InsertView(context.Background(), rec); !errors.Is(err, store.ErrDuplicateView) {
		t.Errorf("second InsertView: err = %v, want ErrDuplicateView", err)
	}
}
