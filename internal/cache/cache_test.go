package cache

import (
	"errors"
	"testing"
)

func TestGetOrLoad(t *testing.T) {
	c := New()
	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	got, err := GetOrLoad(c, "accounts", load)
	if err != nil {
		t.Fatalf("GetOrLoad error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}

	if _, err := GetOrLoad(c, "accounts", load); err != nil {
		t.Fatalf("GetOrLoad error: %v", err)
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1 (second call should hit cache)", calls)
	}
}

func TestLoaderErrorsNotCached(t *testing.T) {
	c := New()
	calls := 0
	load := func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	}

	if _, err := GetOrLoad(c, "k", load); err == nil {
		t.Fatal("expected error from first load")
	}
	got, err := GetOrLoad(c, "k", load)
	if err != nil {
		t.Fatalf("GetOrLoad error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if calls != 2 {
		t.Errorf("loader called %d times, want 2 (error must not be cached)", calls)
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	calls := 0
	load := func() (string, error) {
		calls++
		return "v", nil
	}

	if _, err := GetOrLoad(c, "k1", load); err != nil {
		t.Fatal(err)
	}
	if _, err := GetOrLoad(c, "k2", load); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("k1")
	if c.Len() != 1 {
		t.Errorf("Len() = %d after Invalidate, want 1", c.Len())
	}

	if _, err := GetOrLoad(c, "k1", load); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("loader called %d times, want 3 (invalidated key reloads)", calls)
	}

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after InvalidateAll, want 0", c.Len())
	}
}
