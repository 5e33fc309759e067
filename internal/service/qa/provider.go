package qa

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/config"
)

// Provider builds chains on demand. The vector index is opened lazily and
// kept for the life of the process; the chain itself is cached only when
// caching is enabled. Failures are never cached, so a chain becomes
// available as soon as its prerequisites are.
type Provider struct {
	modelEnabled bool
	newChatModel func(ctx context.Context) (model.ChatModel, error)
	openIndex    func(ctx context.Context) (Index, error)
	topK         int
	cache        bool

	mu     sync.Mutex
	index  Index
	cached Gateway
}

var _ Factory = (*Provider)(nil)

// NewProvider wires the chat model credentials and vector index settings.
func NewProvider(ai config.AIConfig, retrieval config.RetrievalConfig) *Provider {
	return &Provider{
		modelEnabled: ai.Enabled(),
		newChatModel: ai.NewChatModel,
		openIndex: func(ctx context.Context) (Index, error) {
			return OpenVectorIndex(ctx, retrieval)
		},
		topK:  retrieval.TopK,
		cache: retrieval.CacheChain,
	}
}

// Gateway implements Factory.
func (p *Provider) Gateway(ctx context.Context) (Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}

	if !p.modelEnabled {
		return nil, fmt.Errorf("%w: chat model credentials are not configured", ErrChainUnavailable)
	}

	index, err := p.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	count, err := index.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: vector index is empty", ErrChainUnavailable)
	}

	chatModel, err := p.newChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	chain, err := NewChain(ctx, chatModel, index, p.topK)
	if err != nil {
		return nil, err
	}

	if p.cache {
		p.cached = chain
		klog.V(6).Infof("[qa] chain ready and cached, documents=%d", count)
	}
	return chain, nil
}

func (p *Provider) ensureIndex(ctx context.Context) (Index, error) {
	if p.index != nil {
		return p.index, nil
	}

	index, err := p.openIndex(ctx)
	if err != nil {
		klog.Warningf("[qa] vector index unavailable: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	p.index = index
	return index, nil
}

// Close releases the vector index, if it was opened.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index != nil {
		p.index.Close()
		p.index = nil
	}
	p.cached = nil
}
