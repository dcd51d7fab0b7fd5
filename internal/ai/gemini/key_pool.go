package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrNoGeminiClients = errors.New("no Gemini clients available")

// KeyPool spreads classifier calls over several API keys. A key whose call fails rests
// for the cooldown before it is offered again.
type KeyPool struct {
	clients  []GeminiClient
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	next      int
	restUntil []time.Time
}

func NewKeyPool(clients []GeminiClient, cooldown time.Duration, logger *slog.Logger) *KeyPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyPool{
		clients:   clients,
		cooldown:  cooldown,
		logger:    logger.With("component", "gemini-key-pool"),
		now:       time.Now,
		restUntil: make([]time.Time, len(clients)),
	}
}

func (p *KeyPool) Size() int {
	return len(p.clients)
}

// acquire picks the next key in rotation that is neither resting nor already tried.
// It returns -1 when none is left.
func (p *KeyPool) acquire(tried []bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := range p.clients {
		idx := (p.next + i) % len(p.clients)
		if tried[idx] || now.Before(p.restUntil[idx]) {
			continue
		}
		p.next = (idx + 1) % len(p.clients)
		return idx
	}
	return -1
}

func (p *KeyPool) rest(idx int) {
	p.mu.Lock()
	p.restUntil[idx] = p.now().Add(p.cooldown)
	p.mu.Unlock()
}

// Do runs op with one key after another until a call succeeds, every available key was
// tried once, or ctx ends.
func (p *KeyPool) Do(ctx context.Context, op func(ctx context.Context, client *GeminiClient) error) error {
	if len(p.clients) == 0 {
		return ErrNoGeminiClients
	}

	tried := make([]bool, len(p.clients))
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		idx := p.acquire(tried)
		if idx < 0 {
			break
		}
		tried[idx] = true

		err := op(ctx, &p.clients[idx])
		if err == nil {
			return nil
		}
		if ctx.Err() == nil {
			p.rest(idx)
		}
		p.logger.Warn("Gemini key failed, rotating", "key_index", idx, "error", err)
		errs = append(errs, fmt.Errorf("key[%d]: %w", idx, err))
	}

	if len(errs) == 0 {
		return fmt.Errorf("all %d Gemini keys are cooling down", len(p.clients))
	}
	return fmt.Errorf("all Gemini keys failed: %w", errors.Join(errs...))
}
