package core

import (
	"sync"
	"testing"
)

func TestSpinLockExcludes(t *testing.T) {
	var l SpinLock
	var wg sync.WaitGroup
	counter := 0

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s := l.Lock()
				counter++
				l.Unlock(s)
			}
		}()
	}
	wg.Wait()

	if counter != 8000 {
		t.Errorf("Expected counter 8000, got %d", counter)
	}
	if l.Held() {
		t.Errorf("Expected lock to be free after all goroutines finished")
	}
}

func TestSpinLockTryLock(t *testing.T) {
	var l SpinLock

	s, ok := l.TryLock()
	if !ok {
		t.Fatalf("TryLock on a free lock failed")
	}
	if _, ok := l.TryLock(); ok {
		t.Errorf("Expected TryLock to fail while held")
	}
	l.Unlock(s)

	if _, ok := l.TryLock(); !ok {
		t.Errorf("Expected TryLock to succeed after Unlock")
	}
}
