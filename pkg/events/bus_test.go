package events

import (
	"sync"
	"testing"
)

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	got := make(map[string]int)
	for _, id := range []string{"console", "dashboard"} {
		id := id
		bus.Subscribe(id, func(Event) {
			mu.Lock()
			got[id]++
			mu.Unlock()
		})
	}

	bus.Publish(Event{AgentID: "agent-x", Type: TypeStarted})
	bus.Publish(Event{AgentID: "agent-x", Type: TypeStopped})

	mu.Lock()
	defer mu.Unlock()
	if got["console"] != 2 || got["dashboard"] != 2 {
		t.Errorf("deliveries = %v, want 2 per subscriber", got)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var n int
	bus.Subscribe("one", func(Event) { n++ })
	bus.Publish(Event{Type: TypeAction})
	bus.Unsubscribe("one")
	bus.Publish(Event{Type: TypeAction})

	if n != 1 {
		t.Errorf("deliveries after unsubscribe = %d, want 1", n)
	}
}

func TestBus_SubscribeReplacesSameID(t *testing.T) {
	bus := NewBus()

	var first, second int
	bus.Subscribe("one", func(Event) { first++ })
	bus.Subscribe("one", func(Event) { second++ })
	bus.Publish(Event{Type: TypeCycleEnd})

	if first != 0 || second != 1 {
		t.Errorf("first/second = %d/%d, want 0/1", first, second)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	total := 0
	bus.Subscribe("counter", func(Event) {
		mu.Lock()
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(Event{Type: TypeCycleEnd})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if total != 1000 {
		t.Errorf("deliveries = %d, want 1000", total)
	}
}
