package services

import (
	"sync"
	"testing"
)

func TestGuard_AcquireReleaseCycle(t *testing.T) {
	g := NewGuard()

	if !g.TryAcquire("ev1") {
		t.Fatal("first acquire must succeed")
	}
	if g.TryAcquire("ev1") {
		t.Fatal("second acquire of a held id must fail")
	}
	if !g.TryAcquire("ev2") {
		t.Fatal("distinct ids must not contend")
	}

	g.Release("ev1")
	if !g.TryAcquire("ev1") {
		t.Fatal("acquire after release must succeed")
	}
}

func TestGuard_ReleaseUnheldIsNoop(t *testing.T) {
	g := NewGuard()
	g.Release("never-held")
	if g.Held("never-held") {
		t.Fatal("releasing an unheld id must not insert it")
	}
}

func TestGuard_ConcurrentAcquire_SingleWinner(t *testing.T) {
	g := NewGuard()

	const goroutines = 64
	var wg sync.WaitGroup
	winners := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("contested") {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	n := 0
	for range winners {
		n++
	}
	if n != 1 {
		t.Fatalf("exactly one goroutine must win the guard, got %d", n)
	}
}
