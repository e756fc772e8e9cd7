package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MrWong99/rebalance/internal/patchset"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	name  string
	doc   string
	err   error
	calls int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.doc), nil
}

func TestSourceGroup_FallsThroughMissingDocument(t *testing.T) {
	db := &fakeSource{name: "postgres", err: patchset.ErrNotFound}
	emb := &fakeSource{name: "embedded", doc: "format: 1"}
	g := NewSourceGroup(FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}}, db, emb)

	for i := 0; i < 3; i++ {
		got, err := g.Fetch(context.Background(), "v1_16_R1")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(got) != "format: 1" {
			t.Fatalf("Fetch = %q", got)
		}
	}
	if db.calls != 3 {
		t.Errorf("postgres calls = %d, want 3: a missing document must not open the breaker", db.calls)
	}
	if g.Name() != "postgres,embedded" {
		t.Errorf("Name = %q", g.Name())
	}
}

func TestSourceGroup_OpensOnOutage(t *testing.T) {
	db := &fakeSource{name: "postgres", err: errors.New("connection refused")}
	emb := &fakeSource{name: "embedded", doc: "format: 1"}
	g := NewSourceGroup(FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}}, db, emb)

	for i := 0; i < 3; i++ {
		if _, err := g.Fetch(context.Background(), "v1_16_R1"); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if db.calls != 1 {
		t.Errorf("postgres calls = %d, want 1 once its breaker is open", db.calls)
	}
	if st := g.Status(); st[0].State != "open" || st[1].State != "closed" {
		t.Errorf("Status = %+v", st)
	}
	if !g.Available() {
		t.Error("Available = false")
	}
}

func TestSourceGroup_AllMissing(t *testing.T) {
	g := NewSourceGroup(FallbackConfig{},
		&fakeSource{name: "a", err: patchset.ErrNotFound},
		&fakeSource{name: "b", err: patchset.ErrNotFound},
	)
	_, err := g.Fetch(context.Background(), "v1_8_R3")
	if !errors.Is(err, patchset.ErrNotFound) || !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed wrapping ErrNotFound", err)
	}
}

func TestSourceGroup_ReportsBreakerTransitions(t *testing.T) {
	t.Parallel()
	tr := &transitions{}
	db := &fakeSource{name: "postgres", err: errOutage}
	emb := &fakeSource{name: "embedded", doc: "format: 1"}
	g := NewSourceGroup(FallbackConfig{CircuitBreaker: CircuitBreakerConfig{
		MaxFailures:   1,
		ResetTimeout:  time.Hour,
		OnStateChange: tr.record,
		Logger:        quietLogger(),
	}}, db, emb)

	if _, err := g.Fetch(context.Background(), "v1_16_R1"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := tr.list(); len(got) != 1 || got[0] != "closed>open" {
		t.Errorf("transitions = %v, want [closed>open]", got)
	}
	if st := g.Status(); st[0].State != "open" || st[1].State != "closed" {
		t.Errorf("Status = %+v", st)
	}
}
