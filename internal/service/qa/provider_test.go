package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerFixture struct {
	provider *Provider
	index    *fakeIndex
	opens    int
	models   int
	modelErr error
	openErr  error
}

func newProviderFixture(cache bool) *providerFixture {
	f := &providerFixture{index: &fakeIndex{count: 10}}
	f.provider = &Provider{
		modelEnabled: true,
		topK:         3,
		cache:        cache,
		newChatModel: func(context.Context) (model.ChatModel, error) {
			f.models++
			if f.modelErr != nil {
				return nil, f.modelErr
			}
			return &fakeChatModel{reply: "ok"}, nil
		},
		openIndex: func(context.Context) (Index, error) {
			f.opens++
			if f.openErr != nil {
				return nil, f.openErr
			}
			return f.index, nil
		},
	}
	return f
}

func TestProviderModelNotConfigured(t *testing.T) {
	f := newProviderFixture(true)
	f.provider.modelEnabled = false

	gw, err := f.provider.Gateway(context.Background())
	assert.Nil(t, gw)
	assert.ErrorIs(t, err, ErrChainUnavailable)
	assert.Zero(t, f.opens)
}

func TestProviderIndexOpenFailureIsRetried(t *testing.T) {
	f := newProviderFixture(true)
	f.openErr = errors.New("database is down")

	_, err := f.provider.Gateway(context.Background())
	assert.ErrorIs(t, err, ErrChainUnavailable)

	f.openErr = nil
	gw, err := f.provider.Gateway(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, gw)
	assert.Equal(t, 2, f.opens)
}

func TestProviderEmptyIndex(t *testing.T) {
	f := newProviderFixture(true)
	f.index.count = 0

	_, err := f.provider.Gateway(context.Background())
	assert.ErrorIs(t, err, ErrChainUnavailable)
	assert.Zero(t, f.models)
}

func TestProviderCountFailure(t *testing.T) {
	f := newProviderFixture(true)
	f.index.countErr = errors.New("relation does not exist")

	_, err := f.provider.Gateway(context.Background())
	assert.ErrorIs(t, err, ErrChainUnavailable)
}

func TestProviderChatModelFailureIsNotUnavailable(t *testing.T) {
	f := newProviderFixture(true)
	f.modelErr = errors.New("invalid api key")

	_, err := f.provider.Gateway(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChainUnavailable)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestProviderCachesChain(t *testing.T) {
	f := newProviderFixture(true)
	ctx := context.Background()

	first, err := f.provider.Gateway(ctx)
	require.NoError(t, err)
	second, err := f.provider.Gateway(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.models)
	assert.Equal(t, 1, f.opens)
}

func TestProviderWithoutCacheRebuildsChain(t *testing.T) {
	f := newProviderFixture(false)
	ctx := context.Background()

	first, err := f.provider.Gateway(ctx)
	require.NoError(t, err)
	second, err := f.provider.Gateway(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, f.models)
	assert.Equal(t, 1, f.opens)
}

func TestProviderClose(t *testing.T) {
	f := newProviderFixture(true)
	_, err := f.provider.Gateway(context.Background())
	require.NoError(t, err)

	f.provider.Close()
	assert.True(t, f.index.closed)
}
