package sched

import (
	"sync"
	"testing"
	"time"
)

func TestMutexMutualExclusion(t *testing.T) {
	m := NewMutex()
	counter := 0
	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()
	if counter != n {
		t.Fatalf("expected %d, got %d", n, counter)
	}
}

func TestMutexFIFOFairness(t *testing.T) {
	m := NewMutex()
	m.Lock()

	const n = 5
	order := make([]int, 0, n)
	var orderMu sync.Mutex
	started := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		i := i
		go func() {
			started <- struct{}{}
			// Ensure goroutines attempt Lock roughly in submission order.
			time.Sleep(time.Duration(i) * 5 * time.Millisecond)
			m.Lock()
			orderMu.Lock()
			order = append(order, i)
			orderMu.Unlock()
			m.Unlock()
		}()
	}
	for i := 0; i < n; i++ {
		<-started
	}
	time.Sleep(50 * time.Millisecond)
	m.Unlock()
	time.Sleep(100 * time.Millisecond)

	orderMu.Lock()
	defer orderMu.Unlock()
	if len(order) != n {
		t.Fatalf("expected %d waiters to complete, got %d: %v", n, len(order), order)
	}
	for i := 0; i < n; i++ {
		if order[i] != i {
			t.Fatalf("expected FIFO order %v, got %v", []int{0, 1, 2, 3, 4}, order)
		}
	}
}

func TestCondBroadcastWakesAll(t *testing.T) {
	m := NewMutex()
	c := NewCond(m)

	const n = 4
	woke := make(chan int, n)
	ready := make(chan struct{}, n)

	for i := 0; i < n; i++ {
		i := i
		go func() {
			m.Lock()
			ready <- struct{}{}
			c.Wait()
			woke <- i
			m.Unlock()
		}()
	}
	for i := 0; i < n; i++ {
		<-ready
	}
	time.Sleep(20 * time.Millisecond) // let all waiters enqueue

	m.Lock()
	c.Broadcast()
	m.Unlock()

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		seen[<-woke] = true
	}
	if len(seen) != n {
		t.Fatalf("expected all %d waiters woken, got %v", n, seen)
	}
}

func TestThreadJoin(t *testing.T) {
	s := NewScheduler()
	ran := false
	th := s.Spawn(func(t *Thread) {
		ran = true
	})
	s.Join(th)
	if !ran {
		t.Fatal("thread body did not run")
	}
	if th.State() != Exited {
		t.Fatalf("expected Exited, got %v", th.State())
	}
}

func TestJoinAny(t *testing.T) {
	s := NewScheduler()
	slow := s.Spawn(func(t *Thread) { time.Sleep(50 * time.Millisecond) })
	fast := s.Spawn(func(t *Thread) {})
	first := s.JoinAny([]*Thread{slow, fast})
	if first != fast {
		t.Fatalf("expected fast thread to finish first")
	}
}
