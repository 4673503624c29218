// Package notify 利用者向けの短命通知（トースト）の配信を担う
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level は通知の重要度を表す
type Level string

const (
	// LevelInfo は通常の通知
	LevelInfo Level = "info"
	// LevelError は失敗の通知
	LevelError Level = "error"
)

// Message は通知1件を表す
type Message struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub は通知の購読者管理と配信を担う。
// 配信はノンブロッキングで、受信が遅い購読者への通知は破棄される
type Hub struct {
	mu   sync.Mutex
	subs map[chan Message]struct{}
}

// NewHub は新しいHubを作成する
func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan Message]struct{}),
	}
}

// Toast は通常の通知を配信する
func (h *Hub) Toast(text string) {
	h.publish(LevelInfo, text)
}

// Error は失敗の通知を配信する
func (h *Hub) Error(text string) {
	h.publish(LevelError, text)
}

// Subscribe は購読チャンネルを登録する
func (h *Hub) Subscribe() chan Message {
	ch := make(chan Message, 8)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

// Unsubscribe は購読チャンネルを解除する
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// publish は全購読者へ通知を配信する
func (h *Hub) publish(level Level, text string) {
	msg := Message{
		ID:        uuid.New().String(),
		Level:     level,
		Text:      text,
		Timestamp: time.Now(),
	}

	log.Printf("通知 [%s]: %s", level, text)

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			// 受信が遅い購読者には配信しない
		}
	}
}
