package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeStockChanged, Data: 3})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			assert.Equal(t, TypeStockChanged, e.Type)
			assert.Equal(t, 3, e.Data)
			assert.False(t, e.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	e := <-ch
	assert.Equal(t, "a", e.Type)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %q", e.Type)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()

	_, ok := <-ch
	require.False(t, ok)
	b.Publish(Event{Type: "after"})
}

func TestSubscribeFiltersTypes(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4, TypeNotifyFailed)
	defer unsub()

	b.Publish(Event{Type: TypeNotifySent})
	b.Publish(Event{Type: TypeNotifyFailed})

	e := <-ch
	assert.Equal(t, TypeNotifyFailed, e.Type)
	assert.Len(t, ch, 0)
}

func TestDroppedCounter(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()
	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: "x"})
	}
	assert.Equal(t, uint64(2), b.Dropped())
}
