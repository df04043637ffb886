package ws

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// ErrSubscriptionClosed é devolvido por Next depois do Unsubscribe
var ErrSubscriptionClosed = errors.New("subscription closed")

// SnapshotSource fornece os snapshots correntes de todos os mercados de uma chave (cache Redis)
type SnapshotSource interface {
	ListByKey(ctx context.Context, key betting.MarketKey) ([]betting.PriceSnapshot, error)
}

// SubscribeOptions ajusta o conteúdo entregue ao viewer
type SubscribeOptions struct {
	IncludeScore bool
}

// Hooks recebe contadores para as métricas do serviço
type Hooks struct {
	OnViewers   func(n int) // viewers conectados
	OnDelivered func(n int) // updates entregues
	OnCoalesced func()      // update substituído por outro mais novo antes da entrega
	OnDropped   func()      // snapshot mais antigo que o último conhecido
}

// Hub mantém o último snapshot por mercado e distribui para os viewers inscritos.
// Uma chave (evento, tipo) pode agrupar vários mercados (linhas FANCY); AsOf é por mercado.
// Um único feed (Redis pub/sub) alimenta Publish; viewers nunca abrem conexões upstream.
type Hub struct {
	log    *zap.Logger
	source SnapshotSource
	hooks  Hooks

	mu      sync.RWMutex
	latest  map[string]betting.PriceSnapshot
	markets map[betting.MarketKey]map[string]struct{} // market_ids conhecidos por chave
	viewers map[string]*Subscription
	byKey   map[betting.MarketKey]map[string]*Subscription
}

func NewHub(log *zap.Logger, source SnapshotSource, hooks Hooks) *Hub {
	return &Hub{
		log:     log,
		source:  source,
		hooks:   hooks,
		latest:  make(map[string]betting.PriceSnapshot),
		markets: make(map[betting.MarketKey]map[string]struct{}),
		viewers: make(map[string]*Subscription),
		byKey:   make(map[betting.MarketKey]map[string]*Subscription),
	}
}

// Subscribe registra o viewer e enfileira imediatamente o snapshot atual de cada chave.
// Um viewerID já registrado tem a assinatura anterior encerrada.
func (h *Hub) Subscribe(ctx context.Context, viewerID string, keys []betting.MarketKey, opts SubscribeOptions) *Subscription {
	sub := &Subscription{
		viewerID:     viewerID,
		includeScore: opts.IncludeScore,
		keys:         make(map[betting.MarketKey]struct{}),
		pending:      make(map[string]betting.PriceSnapshot),
		lastSent:     make(map[string]sentMark),
		notify:       make(chan struct{}, 1),
		closed:       make(chan struct{}),
		hooks:        h.hooks,
	}

	h.mu.Lock()
	old := h.viewers[viewerID]
	if old != nil {
		h.detachLocked(old)
	}
	h.viewers[viewerID] = sub
	n := len(h.viewers)
	h.mu.Unlock()

	if old != nil {
		old.close()
	}
	if h.hooks.OnViewers != nil {
		h.hooks.OnViewers(n)
	}

	h.Watch(ctx, sub, keys)
	return sub
}

// Watch adiciona chaves a uma assinatura existente com cold start de todos os mercados da chave.
// O que o hub já conhece é entregue na hora; o cache completa os mercados que faltam.
func (h *Hub) Watch(ctx context.Context, sub *Subscription, keys []betting.MarketKey) {
	cold := make([]betting.PriceSnapshot, 0, len(keys))

	h.mu.Lock()
	if h.viewers[sub.viewerID] != sub {
		h.mu.Unlock()
		return
	}
	for _, k := range keys {
		set, ok := h.byKey[k]
		if !ok {
			set = make(map[string]*Subscription)
			h.byKey[k] = set
		}
		set[sub.viewerID] = sub
		sub.addKey(k)
		for id := range h.markets[k] {
			cold = append(cold, h.latest[id])
		}
	}
	h.mu.Unlock()

	for _, s := range cold {
		sub.offer(s)
	}
	if h.source == nil {
		return
	}
	for _, k := range keys {
		snaps, err := h.source.ListByKey(ctx, k)
		if err != nil {
			h.log.Debug("no snapshot for cold start", zap.String("key", k.String()), zap.Error(err))
			continue
		}
		for _, s := range snaps {
			sub.offer(h.remember(s))
		}
	}
}

// Unwatch remove chaves da assinatura (o que estava pendente para elas é descartado)
func (h *Hub) Unwatch(sub *Subscription, keys []betting.MarketKey) {
	h.mu.Lock()
	for _, k := range keys {
		if set, ok := h.byKey[k]; ok && set[sub.viewerID] == sub {
			delete(set, sub.viewerID)
			if len(set) == 0 {
				delete(h.byKey, k)
			}
		}
	}
	h.mu.Unlock()
	sub.removeKeys(keys)
}

// Unsubscribe libera o slot do viewer sem afetar os demais
func (h *Hub) Unsubscribe(viewerID string) {
	h.mu.Lock()
	sub := h.viewers[viewerID]
	if sub != nil {
		h.detachLocked(sub)
		delete(h.viewers, viewerID)
	}
	n := len(h.viewers)
	h.mu.Unlock()

	if sub == nil {
		return
	}
	sub.close()
	if h.hooks.OnViewers != nil {
		h.hooks.OnViewers(n)
	}
}

// Publish aplica um snapshot vindo do feed. Snapshots com AsOf menor que o
// último conhecido do mercado são descartados; AsOf igual é aceito (marcador de stale).
func (h *Hub) Publish(s betting.PriceSnapshot) bool {
	k := s.Key()

	h.mu.Lock()
	if prev, ok := h.latest[s.MarketID]; ok && s.AsOf < prev.AsOf {
		h.mu.Unlock()
		if h.hooks.OnDropped != nil {
			h.hooks.OnDropped()
		}
		return false
	}
	h.storeLocked(s)
	targets := make([]*Subscription, 0, len(h.byKey[k]))
	for _, sub := range h.byKey[k] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.offer(s)
	}
	return true
}

// Latest devolve o último snapshot conhecido pelo hub para o mercado
func (h *Hub) Latest(marketID string) (betting.PriceSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.latest[marketID]
	return s, ok
}

// remember guarda o snapshot do cache se for mais novo e devolve o que o hub considera corrente
func (h *Hub) remember(s betting.PriceSnapshot) betting.PriceSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.latest[s.MarketID]; ok && s.AsOf <= prev.AsOf {
		return prev
	}
	h.storeLocked(s)
	return s
}

func (h *Hub) storeLocked(s betting.PriceSnapshot) {
	h.latest[s.MarketID] = s
	k := s.Key()
	set, ok := h.markets[k]
	if !ok {
		set = make(map[string]struct{})
		h.markets[k] = set
	}
	set[s.MarketID] = struct{}{}
}

func (h *Hub) detachLocked(sub *Subscription) {
	for _, k := range sub.watched() {
		if set, ok := h.byKey[k]; ok && set[sub.viewerID] == sub {
			delete(set, sub.viewerID)
			if len(set) == 0 {
				delete(h.byKey, k)
			}
		}
	}
}

// sentMark guarda o último AsOf entregue de um mercado e a chave a que ele pertence
type sentMark struct {
	key  betting.MarketKey
	asOf int64
}

// Subscription é o estado de um viewer: chaves assinadas, pendências
// (o valor mais novo por mercado vence) e o último AsOf entregue por mercado.
type Subscription struct {
	viewerID string
	hooks    Hooks

	mu           sync.Mutex
	includeScore bool
	keys         map[betting.MarketKey]struct{}
	pending      map[string]betting.PriceSnapshot
	lastSent     map[string]sentMark

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) ViewerID() string { return s.viewerID }

// SetIncludeScore altera a opção de placar para as próximas entregas
func (s *Subscription) SetIncludeScore(v bool) {
	s.mu.Lock()
	s.includeScore = v
	s.mu.Unlock()
}

// Next bloqueia até haver updates pendentes e devolve todos de uma vez
func (s *Subscription) Next(ctx context.Context) ([]Update, error) {
	for {
		if out := s.drain(); len(out) > 0 {
			if s.hooks.OnDelivered != nil {
				s.hooks.OnDelivered(len(out))
			}
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, ErrSubscriptionClosed
		case <-s.notify:
		}
	}
}

func (s *Subscription) drain() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := make([]Update, 0, len(s.pending))
	for id, snap := range s.pending {
		if last, ok := s.lastSent[id]; ok && snap.AsOf < last.asOf {
			continue
		}
		s.lastSent[id] = sentMark{key: snap.Key(), asOf: snap.AsOf}
		if !s.includeScore {
			snap.Score = nil
		}
		out = append(out, Update{Type: "price", Snapshot: snap})
	}
	s.pending = make(map[string]betting.PriceSnapshot)
	// ordem estável facilita o consumo pelo cliente
	sort.Slice(out, func(i, j int) bool { return out[i].Snapshot.MarketID < out[j].Snapshot.MarketID })
	return out
}

func (s *Subscription) offer(snap betting.PriceSnapshot) {
	s.mu.Lock()
	if _, ok := s.keys[snap.Key()]; !ok {
		s.mu.Unlock()
		return
	}
	if last, ok := s.lastSent[snap.MarketID]; ok && snap.AsOf < last.asOf {
		s.mu.Unlock()
		return
	}
	prev, had := s.pending[snap.MarketID]
	if had && snap.AsOf < prev.AsOf {
		s.mu.Unlock()
		return
	}
	s.pending[snap.MarketID] = snap
	s.mu.Unlock()

	if had && s.hooks.OnCoalesced != nil {
		s.hooks.OnCoalesced()
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) addKey(k betting.MarketKey) {
	s.mu.Lock()
	s.keys[k] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscription) removeKeys(keys []betting.MarketKey) {
	s.mu.Lock()
	drop := make(map[betting.MarketKey]struct{}, len(keys))
	for _, k := range keys {
		delete(s.keys, k)
		drop[k] = struct{}{}
	}
	for id, snap := range s.pending {
		if _, ok := drop[snap.Key()]; ok {
			delete(s.pending, id)
		}
	}
	for id, m := range s.lastSent {
		if _, ok := drop[m.key]; ok {
			delete(s.lastSent, id)
		}
	}
	s.mu.Unlock()
}

func (s *Subscription) watched() []betting.MarketKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]betting.MarketKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	return out
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}
