package repo_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/chefmate/auth-service/internal/repo"
)

func TestAllowFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	r := repo.NewRedis(mr.Addr())
	defer r.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.Allow(ctx, "login:abc", 3)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d within limit was rejected", i)
		}
	}

	ok, err := r.Allow(ctx, "login:abc", 3)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fourth request in the window must be rejected")
	}

	// another caller's bucket is unaffected
	if ok, _ := r.Allow(ctx, "login:def", 3); !ok {
		t.Fatal("independent key was throttled")
	}
}

func TestAllowZeroLimitDisables(t *testing.T) {
	mr := miniredis.RunT(t)
	r := repo.NewRedis(mr.Addr())
	defer r.Close()

	for i := 0; i < 10; i++ {
		if ok, err := r.Allow(context.Background(), "k", 0); err != nil || !ok {
			t.Fatalf("limiter must be disabled at 0: ok=%v err=%v", ok, err)
		}
	}
}
