package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func openTest(t *testing.T, driver string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "blacklist."+driver)
	s, err := Open(Config{Driver: driver, Path: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	return s, path
}

func TestDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s, path := openTest(t, driver)

			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("load empty: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty blacklist, got %v", got)
			}

			if err := s.Persist([]string{"b", "a", "b", ""}, true); err != nil {
				t.Fatalf("persist: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			reopened, err := Open(Config{Driver: driver, Path: path}, zerolog.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer reopened.Close()

			got, err = reopened.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if want := []string{"a", "b"}; !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}

			if err := reopened.Persist([]string{"c"}, true); err != nil {
				t.Fatalf("persist replace: %v", err)
			}
			got, _ = reopened.Load(ctx)
			if want := []string{"c"}; !reflect.DeepEqual(got, want) {
				t.Errorf("after replace got %v, want %v", got, want)
			}
		})
	}
}

func TestNonForcedWritesCoalesce(t *testing.T) {
	ctx := context.Background()
	s, _ := openTest(t, "file")
	defer s.Close()

	s.Persist([]string{"a"}, false)
	s.Persist([]string{"a", "b"}, false)

	if !s.Dirty() {
		t.Fatal("expected pending write")
	}
	if s.Writes() != 0 {
		t.Errorf("non-forced persist should not write, got %d writes", s.Writes())
	}
	if got, _ := s.Load(ctx); len(got) != 0 {
		t.Errorf("backend should still be empty, got %v", got)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if s.Dirty() || s.Writes() != 1 {
		t.Errorf("after flush: dirty=%v writes=%d", s.Dirty(), s.Writes())
	}
	if got, _ := s.Load(ctx); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %v", got)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if s.Writes() != 1 {
		t.Errorf("clean flush should not write, got %d writes", s.Writes())
	}
}

func TestCloseFlushesPending(t *testing.T) {
	s, path := openTest(t, "file")
	s.Persist([]string{"cafe"}, false)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(Config{Driver: "file", Path: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ := reopened.Load(context.Background())
	if !reflect.DeepEqual(got, []string{"cafe"}) {
		t.Errorf("got %v", got)
	}
}

func TestFileAtomicReplaceLeavesNoTemp(t *testing.T) {
	s, path := openTest(t, "file")
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Persist([]string{"x"}, true); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the data file, got %v", names)
	}
}

func TestFileCorruptLoadFails(t *testing.T) {
	s, path := openTest(t, "file")
	defer s.Close()
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestNoneDriver(t *testing.T) {
	s, err := Open(Config{Driver: "none"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Enabled() {
		t.Error("none driver should be disabled")
	}
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
	if err := s.Persist([]string{"a"}, true); err != nil {
		t.Errorf("persist on disabled store should be a no-op, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, zerolog.Nop()); err == nil {
		t.Error("expected error for missing path")
	}
	if _, err := Open(Config{Driver: "sqlite"}, zerolog.Nop()); err == nil {
		t.Error("expected error for missing path")
	}
}
