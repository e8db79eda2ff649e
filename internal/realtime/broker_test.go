package realtime_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-task-flow/backend/internal/models"
	"go-task-flow/backend/internal/realtime"
)

// snapshotSource はテスト用の可変タスクソースです。
// FindByUserID相当のスナップショットを作成日時の降順で返します。
type snapshotSource struct {
	mu    sync.Mutex
	tasks map[int][]*models.Task
	clock time.Time
	seq   int
}

func newSnapshotSource() *snapshotSource {
	return &snapshotSource{
		tasks: make(map[int][]*models.Task),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *snapshotSource) add(userID int, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.clock = s.clock.Add(time.Millisecond)
	s.tasks[userID] = append(s.tasks[userID], &models.Task{
		ID:        fmt.Sprintf("task-%d", s.seq),
		UserID:    userID,
		Title:     title,
		CreatedAt: s.clock,
	})
}

func (s *snapshotSource) snapshot(ctx context.Context, userID int) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Task, len(s.tasks[userID]))
	copy(out, s.tasks[userID])
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	source := newSnapshotSource()
	source.add(1, "existing task")
	broker := realtime.NewBroker(source.snapshot)

	ch, unsubscribe, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case tasks := <-ch:
		require.Len(t, tasks, 1)
		require.Equal(t, "existing task", tasks[0].Title)
	case <-time.After(time.Second):
		t.Fatal("initial snapshot was not delivered")
	}
}

func TestNotify_DeliversNewSnapshotSortedNewestFirst(t *testing.T) {
	source := newSnapshotSource()
	broker := realtime.NewBroker(source.snapshot)

	ch, unsubscribe, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	defer unsubscribe()
	<-ch // 最初の空スナップショットを消費

	for i := 1; i <= 3; i++ {
		source.add(1, fmt.Sprintf("task %d", i))
		broker.Notify(1)

		select {
		case tasks := <-ch:
			require.Len(t, tasks, i)
			// すべてのスナップショットは作成日時の降順
			for j := 1; j < len(tasks); j++ {
				require.True(t, tasks[j-1].CreatedAt.After(tasks[j].CreatedAt),
					"snapshot must be sorted newest first")
			}
			require.Equal(t, fmt.Sprintf("task %d", i), tasks[0].Title)
		case <-time.After(time.Second):
			t.Fatalf("snapshot %d was not delivered", i)
		}
	}
}

func TestNotify_CoalescesForSlowSubscriber(t *testing.T) {
	source := newSnapshotSource()
	broker := realtime.NewBroker(source.snapshot)

	ch, unsubscribe, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	defer unsubscribe()

	// 消費しないまま複数回通知すると最新のスナップショットだけが残る
	source.add(1, "first")
	broker.Notify(1)
	source.add(1, "second")
	broker.Notify(1)
	source.add(1, "third")
	broker.Notify(1)

	tasks := <-ch
	require.Len(t, tasks, 3)
	require.Equal(t, "third", tasks[0].Title)

	select {
	case extra := <-ch:
		t.Fatalf("expected a single coalesced snapshot, got another with %d tasks", len(extra))
	default:
	}
}

func TestNotify_ScopedToUser(t *testing.T) {
	source := newSnapshotSource()
	broker := realtime.NewBroker(source.snapshot)

	chAlice, unsubAlice, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	defer unsubAlice()
	chBob, unsubBob, err := broker.Subscribe(context.Background(), 2)
	require.NoError(t, err)
	defer unsubBob()
	<-chAlice
	<-chBob

	source.add(1, "alice task")
	broker.Notify(1)

	select {
	case tasks := <-chAlice:
		require.Len(t, tasks, 1)
	case <-time.After(time.Second):
		t.Fatal("alice's snapshot was not delivered")
	}

	select {
	case <-chBob:
		t.Fatal("bob must not receive alice's snapshot")
	default:
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	source := newSnapshotSource()
	broker := realtime.NewBroker(source.snapshot)

	ch, unsubscribe, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	<-ch
	require.Equal(t, 1, broker.SubscriberCount(1))

	unsubscribe()
	unsubscribe() // 複数回呼んでも安全
	require.Equal(t, 0, broker.SubscriberCount(1))

	source.add(1, "after unsubscribe")
	broker.Notify(1)

	select {
	case <-ch:
		t.Fatal("unsubscribed channel must not receive snapshots")
	default:
	}
}

// gatedSnapshot は次の1回のスナップショット読み取りを読み取り後に停止させます。
// 停止中の読み取りが保持する古いスナップショットと、後から届く新しい
// スナップショットの順序を検証するために使います。
type gatedSnapshot struct {
	source   *snapshotSource
	armed    atomic.Bool
	inFlight chan struct{}
	release  chan struct{}
}

func newGatedSnapshot(source *snapshotSource) *gatedSnapshot {
	return &gatedSnapshot{
		source:   source,
		inFlight: make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedSnapshot) snapshot(ctx context.Context, userID int) ([]*models.Task, error) {
	tasks, err := g.source.snapshot(ctx, userID)
	if g.armed.CompareAndSwap(true, false) {
		g.inFlight <- struct{}{}
		<-g.release
	}
	return tasks, err
}

func TestNotify_StaleSnapshotDoesNotReplaceNewerInitialSnapshot(t *testing.T) {
	source := newSnapshotSource()
	source.add(1, "first")
	gate := newGatedSnapshot(source)
	broker := realtime.NewBroker(gate.snapshot)

	chA, unsubA, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	defer unsubA()
	<-chA

	// 通知のスナップショット読み取りを1タスクの状態で止める
	gate.armed.Store(true)
	notifyDone := make(chan struct{})
	go func() {
		broker.Notify(1)
		close(notifyDone)
	}()
	<-gate.inFlight

	// 読み取りが止まっている間に2つ目のタスクが作られ、新しい購読が始まる
	source.add(1, "second")
	chB, unsubB, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)
	defer unsubB()

	close(gate.release)
	<-notifyDone

	// 古い1タスクのスナップショットが新しい初期スナップショットを上書きしない
	select {
	case tasks := <-chB:
		require.Len(t, tasks, 2)
		require.Equal(t, "second", tasks[0].Title)
	case <-time.After(time.Second):
		t.Fatal("initial snapshot was not delivered")
	}
}

func TestSubscribe_MutationDuringInitialSnapshotIsDelivered(t *testing.T) {
	source := newSnapshotSource()
	source.add(1, "first")
	gate := newGatedSnapshot(source)
	broker := realtime.NewBroker(gate.snapshot)

	// 購読の最初のスナップショット読み取りを1タスクの状態で止める
	gate.armed.Store(true)
	type subResult struct {
		ch    <-chan []*models.Task
		unsub func()
		err   error
	}
	resCh := make(chan subResult, 1)
	go func() {
		ch, unsub, err := broker.Subscribe(context.Background(), 1)
		resCh <- subResult{ch, unsub, err}
	}()
	<-gate.inFlight

	// 読み取りが止まっている間に変更と通知が起きる
	source.add(1, "second")
	broker.Notify(1)
	close(gate.release)

	res := <-resCh
	require.NoError(t, res.err)
	defer res.unsub()

	// 読み取り中に起きた変更が配信され、古い初期スナップショットに戻らない
	select {
	case tasks := <-res.ch:
		require.Len(t, tasks, 2)
		require.Equal(t, "second", tasks[0].Title)
	case <-time.After(time.Second):
		t.Fatal("snapshot was not delivered")
	}
}

func TestListFeed_MirrorsSnapshots(t *testing.T) {
	source := newSnapshotSource()
	broker := realtime.NewBroker(source.snapshot)

	ch, unsubscribe, err := broker.Subscribe(context.Background(), 1)
	require.NoError(t, err)

	feed := realtime.NewListFeed(ch, unsubscribe)
	defer feed.Close()

	// 最初のスナップショットが届くとloadingはfalseになり、以降戻らない
	assert.Eventually(t, func() bool {
		return !feed.Loading()
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, feed.Tasks())

	source.add(1, "new task")
	broker.Notify(1)

	assert.Eventually(t, func() bool {
		tasks := feed.Tasks()
		return len(tasks) == 1 && tasks[0].Title == "new task"
	}, time.Second, 10*time.Millisecond)
	assert.False(t, feed.Loading())
}
