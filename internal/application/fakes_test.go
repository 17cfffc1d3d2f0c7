package application

import (
	"context"
	"sync"

	"github.com/autovoyage/service-rental/internal/platform/auth"
)

type publishedEvent struct {
	Topic string
	Type  string
	Key   string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic, eventType, key string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Type: eventType, Key: key})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var (
	owner  = auth.Identity{UID: "u-owner", Email: "owner@x.com", DisplayName: "Olivia Owner"}
	renter = auth.Identity{UID: "u-renter", Email: "a@x.com", DisplayName: "Alice"}
	other  = auth.Identity{UID: "u-other", Email: "b@x.com"}
)
