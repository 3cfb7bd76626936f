package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func pages(data [][]string) Fetch[string] {
	return func(_ context.Context, cursor string) ([]string, string, error) {
		i := 0
		if cursor != "" {
			if _, err := fmt.Sscanf(cursor, "page-%d", &i); err != nil {
				return nil, "", err
			}
		}
		next := ""
		if i+1 < len(data) {
			next = fmt.Sprintf("page-%d", i+1)
		}
		return data[i], next, nil
	}
}

func TestAllCollectsEveryPage(t *testing.T) {
	got, err := All(context.Background(), 0, pages([][]string{{"a", "b"}, {"c"}, {}, {"d"}}))
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAllSinglePage(t *testing.T) {
	calls := 0
	got, err := All(context.Background(), 1, func(_ context.Context, cursor string) ([]int, string, error) {
		calls++
		if cursor != "" {
			t.Errorf("first page cursor = %q, want empty", cursor)
		}
		return []int{1, 2}, "", nil
	})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 2 || calls != 1 {
		t.Errorf("got %v after %d calls", got, calls)
	}
}

func TestAllPageLimit(t *testing.T) {
	data := make([][]string, 10)
	for i := range data {
		data[i] = []string{fmt.Sprint(i)}
	}
	got, err := All(context.Background(), 3, pages(data))
	if !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("err = %v, want ErrTooManyPages", err)
	}
	if len(got) != 3 {
		t.Errorf("partial result has %d items, want 3", len(got))
	}
}

func TestAllCursorLoop(t *testing.T) {
	_, err := All(context.Background(), 0, func(context.Context, string) ([]string, string, error) {
		return []string{"x"}, "same", nil
	})
	if !errors.Is(err, ErrCursorLoop) {
		t.Fatalf("err = %v, want ErrCursorLoop", err)
	}
}

func TestAllFetchError(t *testing.T) {
	boom := errors.New("boom")
	_, err := All(context.Background(), 0, func(context.Context, string) ([]string, string, error) {
		return nil, "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := All(ctx, 0, pages([][]string{{"a"}}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	if !c.HasMore || c.Pages != 0 {
		t.Fatalf("fresh collector = %+v", c)
	}
	if err := c.Update(3, "next"); err != nil {
		t.Fatal(err)
	}
	if c.NextCursor != "next" || !c.HasMore || c.TotalItems != 3 {
		t.Errorf("after first page = %+v", c)
	}
	if err := c.Update(2, ""); err != nil {
		t.Fatal(err)
	}
	if c.HasMore || c.TotalItems != 5 || c.Pages != 2 {
		t.Errorf("after last page = %+v", c)
	}
}
