package batch

import (
	"MarketRadar/internal/domain"
	"MarketRadar/internal/textutil"
)

type pending struct {
	text      string
	permalink string
}

// Buffer accumulates filtered items until a batch is due. It is owned by a
// single goroutine.
type Buffer struct {
	size         int
	maxTextChars int
	items        []pending
}

// NewBuffer returns an empty buffer; size below 1 is treated as 1.
func NewBuffer(size, maxTextChars int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{size: size, maxTextChars: maxTextChars}
}

// Add stores the item text (title and body) truncated to the provider-safe length.
func (b *Buffer) Add(item domain.FeedItem) {
	b.items = append(b.items, pending{
		text:      textutil.Truncate(item.Title+"\n"+item.Body, b.maxTextChars),
		permalink: item.Permalink,
	})
}

// IsFull reports whether the size threshold was reached.
func (b *Buffer) IsFull() bool {
	return len(b.items) >= b.size
}

// Len returns the number of buffered items.
func (b *Buffer) Len() int {
	return len(b.items)
}

// Size returns the configured threshold.
func (b *Buffer) Size() int {
	return b.size
}

// Drain hands off every buffered item in insertion order, indexed from 0, and
// empties the buffer.
func (b *Buffer) Drain() []domain.BufferedItem {
	out := make([]domain.BufferedItem, len(b.items))
	for i, it := range b.items {
		out[i] = domain.BufferedItem{Index: i, Text: it.text, Permalink: it.permalink}
	}
	b.items = nil
	return out
}
