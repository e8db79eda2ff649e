// Package realtime はタスクリストのリアルタイム購読を提供します。
// 購読者は購読開始時に最初のスナップショットを受け取り、以降は
// 対象ユーザーのタスクが変更されるたびに新しいスナップショットを受け取ります。
package realtime

import (
	"context"
	"log"
	"sync"

	"go-task-flow/backend/internal/models"
)

// SnapshotFunc はユーザーの最新タスク一覧（作成日時の降順）を取得します。
type SnapshotFunc func(ctx context.Context, userID int) ([]*models.Task, error)

// Broker はユーザーごとの購読者を管理し、スナップショットを配信します。
// スナップショットにはユーザーごとの単調増加する世代番号が付き、各購読者には
// 世代番号の昇順でしか配信されません。スナップショットの読み取りはロックの
// 外で行われるため、読み取りの完了順は世代順と一致しないことがあります。
type Broker struct {
	mu       sync.Mutex
	snapshot SnapshotFunc
	subs     map[int]map[*subscriber]struct{}
	versions map[int]uint64
}

type subscriber struct {
	ch chan []*models.Task
	// delivered は最後に配信したスナップショットの世代番号です (b.muで保護)。
	delivered uint64
}

// NewBroker は新しいBrokerを作成します。
func NewBroker(snapshot SnapshotFunc) *Broker {
	return &Broker{
		snapshot: snapshot,
		subs:     make(map[int]map[*subscriber]struct{}),
		versions: make(map[int]uint64),
	}
}

// Subscribe は対象ユーザーのタスクリスト購読を開始します。
// 最初のスナップショットは即座にチャネルへ配信されます。購読の登録は
// スナップショットの読み取りより先に行われるため、読み取り中に起きた変更の
// 通知を取りこぼしません。
// 返された解除関数を呼ぶと配信は止まります（複数回呼んでも安全です）。
func (b *Broker) Subscribe(ctx context.Context, userID int) (<-chan []*models.Task, func(), error) {
	// 容量1: 消費が遅い購読者には最新のスナップショットだけが残る
	sub := &subscriber{ch: make(chan []*models.Task, 1)}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*subscriber]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	b.versions[userID]++
	version := b.versions[userID]
	b.mu.Unlock()

	tasks, err := b.snapshot(ctx, userID)
	if err != nil {
		b.remove(userID, sub)
		return nil, nil, err
	}

	b.mu.Lock()
	b.deliver(userID, sub, tasks, version)
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.remove(userID, sub)
		})
	}

	return sub.ch, unsubscribe, nil
}

// Notify は対象ユーザーの全購読者へ最新スナップショットを配信します。
// スナップショットの取得に失敗した場合は記録するだけで、購読は継続します。
func (b *Broker) Notify(userID int) {
	b.mu.Lock()
	if len(b.subs[userID]) == 0 {
		b.mu.Unlock()
		return
	}
	b.versions[userID]++
	version := b.versions[userID]
	b.mu.Unlock()

	tasks, err := b.snapshot(context.Background(), userID)
	if err != nil {
		log.Printf("Failed to load task snapshot for user %d: %v", userID, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[userID] {
		b.deliver(userID, sub, tasks, version)
	}
}

// deliver はスナップショットを1購読者へ配信します。b.muを保持して呼び出します。
// すでに新しい世代を配信済みの購読者へは、古いスナップショットは配信しません。
func (b *Broker) deliver(userID int, sub *subscriber, tasks []*models.Task, version uint64) {
	if _, ok := b.subs[userID][sub]; !ok {
		return
	}
	if version <= sub.delivered {
		return
	}
	// 未消費の古いスナップショットを捨てて最新だけを残す
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- tasks
	sub.delivered = version
}

func (b *Broker) remove(userID int, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[userID], sub)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
		delete(b.versions, userID)
	}
}

// SubscriberCount は対象ユーザーの現在の購読者数を返します。
func (b *Broker) SubscriberCount(userID int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
