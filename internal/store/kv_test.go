package store

import (
	"context"
	"testing"
)

func TestGet_Absent(t *testing.T) {
	s := createTestStore(t, Options{})

	got, found, err := s.Get(context.Background(), []byte("missing"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if found || got != nil {
		t.Errorf("Get() = %q, %v; want nil, false", got, found)
	}
}

func TestPut_Overwrites(t *testing.T) {
	s := createTestStore(t, Options{})
	mustPut(t, s, "k", "first")
	mustPut(t, s, "k", "second")

	got, _, _ := s.Get(context.Background(), []byte("k"))
	if string(got) != "second" {
		t.Errorf("Get() = %q, want %q", got, "second")
	}
}

func TestAppend_CreatesAndExtends(t *testing.T) {
	s := createTestStore(t, Options{Codec: CodecSnappy})
	ctx := context.Background()

	if err := s.Append(ctx, []byte("log"), []byte("a")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.Append(ctx, []byte("log"), []byte("bc")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	got, _, _ := s.Get(ctx, []byte("log"))
	if string(got) != "abc" {
		t.Errorf("Get() = %q, want %q", got, "abc")
	}
}

func TestDelete(t *testing.T) {
	s := createTestStore(t, Options{})
	mustPut(t, s, "k", "v")

	deleted, err := s.Delete(context.Background(), []byte("k"))
	if err != nil || !deleted {
		t.Errorf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = s.Delete(context.Background(), []byte("k"))
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
	}
}

func TestNavigation(t *testing.T) {
	s := createTestStore(t, Options{})
	for _, k := range []string{"b", "d", "f"} {
		mustPut(t, s, k, k)
	}
	ctx := context.Background()

	tests := []struct {
		name  string
		run   func() ([]byte, bool, error)
		want  string
		found bool
	}{
		{"first", func() ([]byte, bool, error) { return s.First(ctx) }, "b", true},
		{"last", func() ([]byte, bool, error) { return s.Last(ctx) }, "f", true},
		{"next", func() ([]byte, bool, error) { return s.Next(ctx, []byte("b")) }, "d", true},
		{"next past end", func() ([]byte, bool, error) { return s.Next(ctx, []byte("f")) }, "", false},
		{"prev", func() ([]byte, bool, error) { return s.Prev(ctx, []byte("d")) }, "b", true},
		{"prev past start", func() ([]byte, bool, error) { return s.Prev(ctx, []byte("b")) }, "", false},
		{"seek exact hit", func() ([]byte, bool, error) { return s.Seek(ctx, []byte("d"), MatchExact) }, "d", true},
		{"seek exact miss", func() ([]byte, bool, error) { return s.Seek(ctx, []byte("c"), MatchExact) }, "", false},
		{"seek le", func() ([]byte, bool, error) { return s.Seek(ctx, []byte("c"), MatchLE) }, "b", true},
		{"seek le miss", func() ([]byte, bool, error) { return s.Seek(ctx, []byte("a"), MatchLE) }, "", false},
		{"seek ge", func() ([]byte, bool, error) { return s.Seek(ctx, []byte("e"), MatchGE) }, "f", true},
		{"seek ge miss", func() ([]byte, bool, error) { return s.Seek(ctx, []byte("g"), MatchGE) }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := tt.run()
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if found != tt.found || string(got) != tt.want {
				t.Errorf("got %q, %v; want %q, %v", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestFirst_Empty(t *testing.T) {
	s := createTestStore(t, Options{})
	_, found, err := s.First(context.Background())
	if err != nil || found {
		t.Errorf("First() on empty store = %v, %v; want false, nil", found, err)
	}
}

func TestCount(t *testing.T) {
	s := createTestStore(t, Options{})
	mustPut(t, s, "a", "1")
	mustPut(t, s, "b", "2")

	n, err := s.Count(context.Background())
	if err != nil || n != 2 {
		t.Errorf("Count() = %d, %v; want 2, nil", n, err)
	}
}
