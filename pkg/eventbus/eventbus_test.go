package eventbus

import "testing"

func TestPublishSubscribe(t *testing.T) {
	b := New()
	var got []any
	b.Subscribe("match", func(p any) { got = append(got, p) })

	b.Publish("match", "one")
	b.Publish("match", "two")
	b.Publish("nomatch", "ignored-topic")

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected payloads: %+v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe("hear", func(any) { calls++ })

	b.Publish("hear", nil)
	unsub()
	b.Publish("hear", nil)
	unsub() // idempotent

	if calls != 1 {
		t.Fatalf("expected 1 call before unsubscribe, got %d", calls)
	}
	if b.Count("hear") != 0 {
		t.Fatalf("expected 0 subscriptions after unsubscribe, got %d", b.Count("hear"))
	}
}

func TestMultipleSubscribersRunInOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe("listen", func(any) { order = append(order, 1) })
	b.Subscribe("listen", func(any) { order = append(order, 2) })
	b.Subscribe("listen", func(any) { order = append(order, 3) })

	b.Publish("listen", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected order: %v", order)
	}
}
