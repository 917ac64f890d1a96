package queue

import (
	"testing"

	"github.com/realmfikri/marketsim/internal/types"
)

func TestOrdersByTimeThenFIFO(t *testing.T) {
	q := New()
	q.Push(types.Message{To: 1, At: 50})
	q.Push(types.Message{To: 2, At: 10})
	q.Push(types.Message{To: 3, At: 10})
	q.Push(types.Message{To: 4, At: 30})

	want := []types.AgentID{2, 3, 4, 1}
	for _, w := range want {
		msg, ok := q.Pop()
		if !ok {
			t.Fatalf("expected a message for agent %d, queue empty", w)
		}
		if msg.To != w {
			t.Fatalf("got To=%d, want %d", msg.To, w)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected queue to be empty")
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New()
	q.Push(types.Message{To: 1, At: 5})

	first, ok := q.Peek()
	if !ok || first.To != 1 {
		t.Fatalf("unexpected peek result: %+v ok=%v", first, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("peek should not remove, len=%d", q.Len())
	}

	second, ok := q.Pop()
	if !ok || second.To != 1 {
		t.Fatalf("unexpected pop result: %+v ok=%v", second, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after pop, len=%d", q.Len())
	}
}

func TestClear(t *testing.T) {
	q := New()
	q.Push(types.Message{To: 1, At: 1})
	q.Push(types.Message{To: 2, At: 2})
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after Clear, len=%d", q.Len())
	}
}
