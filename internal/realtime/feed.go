package realtime

import (
	"sync"

	"go-task-flow/backend/internal/models"
)

// ListFeed は購読チャネルをローカル状態にミラーします。
// Loading は最初のスナップショットが届くまでtrueで、以降は
// 購読がエラーで止まってもfalseのままです。
type ListFeed struct {
	mu      sync.RWMutex
	tasks   []*models.Task
	loading bool

	unsub     func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewListFeed は購読チャネルの消費を開始し、ListFeedを返します。
// unsub には Broker.Subscribe が返した解除関数を渡します。
func NewListFeed(ch <-chan []*models.Task, unsub func()) *ListFeed {
	f := &ListFeed{
		loading: true,
		unsub:   unsub,
		done:    make(chan struct{}),
	}
	go f.run(ch)
	return f
}

func (f *ListFeed) run(ch <-chan []*models.Task) {
	for {
		select {
		case tasks, ok := <-ch:
			if !ok {
				return
			}
			f.mu.Lock()
			f.tasks = tasks
			f.loading = false
			f.mu.Unlock()
		case <-f.done:
			return
		}
	}
}

// Tasks は最新スナップショットのタスク一覧を返します。
func (f *ListFeed) Tasks() []*models.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tasks
}

// Loading は最初のスナップショットがまだ届いていない場合にtrueを返します。
func (f *ListFeed) Loading() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loading
}

// Close は購読を解除し、ミラーの更新を停止します。
func (f *ListFeed) Close() {
	f.closeOnce.Do(func() {
		f.unsub()
		close(f.done)
	})
}
