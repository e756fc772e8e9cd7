package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var errTest = errors.New("test error")

func newGroup(names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup(names[0], names[0], FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestFallbackGroup_Execute(t *testing.T) {
	tests := []struct {
		name       string
		failing    map[string]bool
		wantCalled []string
		wantErr    bool
	}{
		{
			name:       "primary succeeds",
			wantCalled: []string{"postgres"},
		},
		{
			name:       "primary fails, fallback succeeds",
			failing:    map[string]bool{"postgres": true},
			wantCalled: []string{"postgres", "embedded"},
		},
		{
			name:       "all fail",
			failing:    map[string]bool{"postgres": true, "embedded": true},
			wantCalled: []string{"postgres", "embedded"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg := newGroup("postgres", "embedded")

			var called []string
			err := fg.Execute(func(v string) error {
				called = append(called, v)
				if tt.failing[v] {
					return errTest
				}
				return nil
			})
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) {
					t.Fatalf("err = %v, want ErrAllFailed", err)
				}
				if !errors.Is(err, errTest) {
					t.Errorf("err = %v, want the last entry error wrapped", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantCalled, called); diff != "" {
				t.Errorf("call order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFallbackGroup_CircuitBreakerSkipsOpenEntry(t *testing.T) {
	fg := newGroup("postgres", "embedded")

	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(v string) error {
			if v == "postgres" {
				return errTest
			}
			return nil
		})
	}

	var called []string
	if err := fg.Execute(func(v string) error {
		called = append(called, v)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"embedded"}, called); diff != "" {
		t.Errorf("open primary was not skipped (-want +got):\n%s", diff)
	}

	want := []EntryStatus{{Name: "postgres", State: "open"}, {Name: "embedded", State: "closed"}}
	if diff := cmp.Diff(want, fg.Status()); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}
	if !fg.Available() {
		t.Error("Available = false with a closed fallback")
	}
}

func TestFallbackGroup_Available(t *testing.T) {
	fg := newGroup("postgres")
	_ = fg.Execute(func(string) error { return errTest })
	_ = fg.Execute(func(string) error { return errTest })
	if fg.Available() {
		t.Error("Available = true with every breaker open")
	}
	if err := fg.Execute(func(string) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen wrapped", err)
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := newGroup("s3", "embedded")

	got, err := ExecuteWithResult(fg, func(v string) ([]byte, error) {
		if v == "s3" {
			return nil, errTest
		}
		return []byte("format: 1"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "format: 1" {
		t.Errorf("result = %q, want the fallback document", got)
	}
	if diff := cmp.Diff([]string{"s3", "embedded"}, fg.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}
