package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	cport "go-directchat/internal/infrastructure/cache/port"
	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

// ResolveConversationInput names the two users of a direct conversation.
// Order does not matter.
type ResolveConversationInput struct {
	UserA string
	UserB string
}

// ResolveConversationUseCase returns the conversation of a user pair, creating
// it on first use. Pair -> id lookups are memoized in the cache.
type ResolveConversationUseCase struct {
	Repo  repository.ChatRepository
	Cache cport.Cache
	TTL   time.Duration
	Log   zerolog.Logger
}

func NewResolveConversationUseCase(repo repository.ChatRepository, cache cport.Cache, ttl time.Duration, log zerolog.Logger) *ResolveConversationUseCase {
	return &ResolveConversationUseCase{
		Repo:  repo,
		Cache: cache,
		TTL:   ttl,
		Log:   log.With().Str("component", "resolve_conversation").Logger(),
	}
}

func (uc *ResolveConversationUseCase) Execute(ctx context.Context, in ResolveConversationInput) (chat.Conversation, error) {
	pair, err := chat.NormalizePair(in.UserA, in.UserB)
	if err != nil {
		return chat.Conversation{}, err
	}
	key := pairCacheKey(pair)

	if conv, ok := uc.fromCache(ctx, key, pair); ok {
		return conv, nil
	}

	conv, err := uc.Repo.CreateOrGetConversation(ctx, pair)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Cache != nil {
		if err := uc.Cache.Set(ctx, key, conv.ID, uc.TTL); err != nil {
			uc.Log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("cache set failed")
		}
	}
	return conv, nil
}

// fromCache resolves a cached id. Stale entries are evicted and cache errors
// only cost a repository round trip.
func (uc *ResolveConversationUseCase) fromCache(ctx context.Context, key string, pair [2]string) (chat.Conversation, bool) {
	if uc.Cache == nil {
		return chat.Conversation{}, false
	}
	id, err := uc.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cport.ErrMiss) {
			uc.Log.Warn().Err(err).Msg("cache get failed")
		}
		return chat.Conversation{}, false
	}

	conv, err := uc.Repo.GetConversation(ctx, id)
	if err != nil || conv.Participants != pair {
		if _, delErr := uc.Cache.Del(ctx, key); delErr != nil {
			uc.Log.Warn().Err(delErr).Msg("cache del failed")
		}
		return chat.Conversation{}, false
	}
	return conv, true
}

// pairCacheKey length-prefixes the first id so distinct pairs never collide.
func pairCacheKey(pair [2]string) string {
	return fmt.Sprintf("conversation:pair:%d:%s:%s", len(pair[0]), pair[0], pair[1])
}
