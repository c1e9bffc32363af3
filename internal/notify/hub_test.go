package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := NewHub(4)
	var counts []int
	h.OnChange(func(n int) { counts = append(counts, n) })

	a := h.Register()
	b := h.Register()
	assert.Equal(t, 2, h.Count())

	n := h.Broadcast(NewEvent(EventNewMessage, map[string]string{"text": "halo"}))
	assert.Equal(t, 2, n)

	ev := <-a.Events()
	assert.Equal(t, EventNewMessage, ev.Type)
	assert.JSONEq(t, `{"text":"halo"}`, string(ev.Data))
	<-b.Events()

	h.Unregister(a)
	h.Unregister(a) // 重复注销无副作用
	_, open := <-a.Events()
	assert.False(t, open, "注销后通道关闭")
	assert.Equal(t, 1, h.Broadcast(NewEvent(EventBroadcast, "x")))
	assert.Equal(t, []int{1, 2, 1}, counts)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub(1)
	slow := h.Register()

	assert.Equal(t, 1, h.Broadcast(NewEvent(EventBroadcast, 1)))
	assert.Equal(t, 0, h.Broadcast(NewEvent(EventBroadcast, 2)), "队列已满")
	assert.Equal(t, 0, h.Count(), "慢连接被移除")

	<-slow.Events()
	_, open := <-slow.Events()
	assert.False(t, open)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h := NewHub(64)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := h.Register()
			h.Broadcast(NewEvent(EventBroadcast, i))
			h.Unregister(c)
		}()
	}
	wg.Wait()
	require.Equal(t, 0, h.Count())
}
