package placement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/shared/memstore"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakePrices struct {
	mu    sync.Mutex
	snaps map[string]betting.PriceSnapshot
}

func (f *fakePrices) Current(_ context.Context, id string) (betting.PriceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[id]
	if !ok {
		return s, errors.New("no price")
	}
	return s, nil
}

type fakePub struct {
	mu   sync.Mutex
	got  []events.BetPlaced
	fail bool
}

func (p *fakePub) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("kafka down")
	}
	p.got = append(p.got, e)
	return nil
}

type fixture struct {
	store  *memstore.Store
	prices *fakePrices
	pub    *fakePub
	svc    *Service
}

func newFixture(t *testing.T, tolerance string) *fixture {
	t.Helper()
	st := memstore.New(50 * time.Millisecond)
	st.PutMarket(betting.Market{ID: "M1", EventID: "EV1", Type: betting.MarketMatchOdds,
		Status: betting.MarketActive, MinStakeCents: 10, MaxStakeCents: 5000})
	if _, _, err := st.Deposit(context.Background(), "u1", 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	prices := &fakePrices{snaps: map[string]betting.PriceSnapshot{
		"M1": {
			MarketID: "M1", EventID: "EV1", MarketType: betting.MarketMatchOdds,
			MarketStatus: betting.MarketActive, MinStakeCents: 10, MaxStakeCents: 5000, AsOf: 1,
			Selections: []betting.Selection{
				{ID: "S1", BackPrice: d("2.00"), LayPrice: d("2.02"), Status: betting.SelectionActive},
				{ID: "S2", BackPrice: d("2.96"), LayPrice: d("3.00"), Status: betting.SelectionActive},
				{ID: "S3", BackPrice: d("5.00"), LayPrice: d("5.10"), Status: betting.SelectionSuspended},
			},
		},
	}}
	pub := &fakePub{}
	svc := NewService(st, prices, pub, zap.NewNop(), d(tolerance), Hooks{})
	return &fixture{store: st, prices: prices, pub: pub, svc: svc}
}

func backReq(odds string, stake int64) Request {
	return Request{UserID: "u1", MarketID: "M1", SelectionID: "S1", Type: betting.Back, Odds: d(odds), StakeCents: stake}
}

func (f *fixture) wallet(t *testing.T) betting.Wallet {
	t.Helper()
	w, err := f.store.GetWallet(context.Background(), "u1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return w
}

func TestPlaceBack(t *testing.T) {
	f := newFixture(t, "0")
	res, err := f.svc.Place(context.Background(), backReq("2.00", 100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Bet.Status != betting.BetPending || res.Bet.LockedCents != 100 || res.Bet.PotentialPayoutCents != 200 {
		t.Fatalf("bet=%+v", res.Bet)
	}
	if res.Wallet.BalanceCents != 400 || res.Wallet.LockedCents != 100 {
		t.Fatalf("wallet=%+v want balance=400 locked=100", res.Wallet)
	}
	if len(f.pub.got) != 1 || f.pub.got[0].BetID != res.Bet.ID {
		t.Fatalf("published=%+v", f.pub.got)
	}
	txs, _ := f.store.ListTransactions(context.Background(), "u1", 1)
	if txs[0].Type != betting.TxBet || txs[0].AmountCents != -100 || txs[0].BetID != res.Bet.ID {
		t.Fatalf("ledger=%+v", txs[0])
	}
}

func TestPlaceLayLocksLiability(t *testing.T) {
	f := newFixture(t, "0")
	req := Request{UserID: "u1", MarketID: "M1", SelectionID: "S2", Type: betting.Lay, Odds: d("3.00"), StakeCents: 100}
	res, err := f.svc.Place(context.Background(), req)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Bet.LockedCents != 200 || res.Wallet.BalanceCents != 300 || res.Wallet.LockedCents != 200 {
		t.Fatalf("bet=%+v wallet=%+v", res.Bet, res.Wallet)
	}
}

func TestPlacePriceChanged(t *testing.T) {
	f := newFixture(t, "0")
	_, err := f.svc.Place(context.Background(), backReq("2.10", 100))

	var pc *PriceChangedError
	if !errors.As(err, &pc) || !errors.Is(err, ErrPriceChanged) {
		t.Fatalf("err=%v want PriceChangedError", err)
	}
	if !pc.Current.Equal(d("2.00")) {
		t.Fatalf("current=%s want=2.00", pc.Current)
	}
	if w := f.wallet(t); w.BalanceCents != 500 || w.LockedCents != 0 {
		t.Fatalf("wallet mutated: %+v", w)
	}
	if txs, _ := f.store.ListTransactions(context.Background(), "u1", 0); len(txs) != 1 {
		t.Fatalf("unexpected ledger entries: %+v", txs)
	}
}

func TestPlaceWithinTolerance(t *testing.T) {
	f := newFixture(t, "0.05")
	res, err := f.svc.Place(context.Background(), backReq("2.04", 100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Bet.Odds.Equal(d("2.00")) {
		t.Fatalf("odds=%s want current price 2.00", res.Bet.Odds)
	}
}

func TestPlaceRejections(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture)
		req   Request
		want  error
	}{
		{"unknown market", nil, Request{UserID: "u1", MarketID: "MX", SelectionID: "S1", Type: betting.Back, Odds: d("2"), StakeCents: 100}, ErrMarketNotFound},
		{"invalid bet type", nil, Request{UserID: "u1", MarketID: "M1", SelectionID: "S1", Type: "BACKING", Odds: d("2"), StakeCents: 100}, ErrInvalidRequest},
		{"odds below minimum", nil, backReq("1.00", 100), ErrInvalidRequest},
		{"stake below min", nil, backReq("2.00", 5), ErrStakeOutOfRange},
		{"stake above max", nil, backReq("2.00", 6000), ErrStakeOutOfRange},
		{"insufficient funds", nil, backReq("2.00", 600), ErrInsufficientFunds},
		{"suspended selection", nil, Request{UserID: "u1", MarketID: "M1", SelectionID: "S3", Type: betting.Back, Odds: d("5"), StakeCents: 100}, ErrMarketSuspended},
		{"unknown selection", nil, Request{UserID: "u1", MarketID: "M1", SelectionID: "Team A", Type: betting.Back, Odds: d("2"), StakeCents: 100}, ErrMarketSuspended},
		{"no wallet", nil, Request{UserID: "u2", MarketID: "M1", SelectionID: "S1", Type: betting.Back, Odds: d("2"), StakeCents: 100}, ErrInsufficientFunds},
		{"market suspended", func(f *fixture) {
			_ = f.store.SetMarketStatus(context.Background(), "M1", betting.MarketSuspended)
		}, backReq("2.00", 100), ErrMarketSuspended},
		{"market closed", func(f *fixture) {
			_ = f.store.SetMarketStatus(context.Background(), "M1", betting.MarketClosed)
		}, backReq("2.00", 100), ErrMarketSuspended},
		{"stale feed", func(f *fixture) {
			s := f.prices.snaps["M1"]
			s.Stale = true
			f.prices.snaps["M1"] = s
		}, backReq("2.00", 100), ErrMarketSuspended},
		{"no snapshot", func(f *fixture) {
			delete(f.prices.snaps, "M1")
		}, backReq("2.00", 100), ErrMarketSuspended},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, "0")
			var reasons []string
			f.svc.hooks.OnRejected = func(r string) { reasons = append(reasons, r) }
			if c.setup != nil {
				c.setup(f)
			}
			_, err := f.svc.Place(context.Background(), c.req)
			if !errors.Is(err, c.want) {
				t.Fatalf("err=%v want=%v", err, c.want)
			}
			if len(reasons) != 1 || reasons[0] != Reason(c.want) {
				t.Fatalf("reasons=%v", reasons)
			}
			if w := f.wallet(t); w.BalanceCents != 500 || w.LockedCents != 0 {
				t.Fatalf("wallet mutated: %+v", w)
			}
		})
	}
}

func TestPlaceBusyWallet(t *testing.T) {
	f := newFixture(t, "0")
	release, err := f.store.AcquireWallet(context.Background(), "u1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := f.svc.Place(context.Background(), backReq("2.00", 100)); !errors.Is(err, ErrBusy) {
		t.Fatalf("err=%v want ErrBusy", err)
	}
}

// closingStore fecha o mercado entre a validação e a gravação
type closingStore struct{ *memstore.Store }

func (c closingStore) GetWallet(ctx context.Context, userID string) (betting.Wallet, error) {
	_ = c.Store.SetMarketStatus(ctx, "M1", betting.MarketClosed)
	return c.Store.GetWallet(ctx, userID)
}

func TestPlaceMarketClosedDuringPlacement(t *testing.T) {
	f := newFixture(t, "0")
	svc := NewService(closingStore{f.store}, f.prices, f.pub, zap.NewNop(), decimal.Zero, Hooks{})

	if _, err := svc.Place(context.Background(), backReq("2.00", 100)); !errors.Is(err, ErrMarketSuspended) {
		t.Fatalf("err=%v want ErrMarketSuspended", err)
	}
	if w := f.wallet(t); w.BalanceCents != 500 {
		t.Fatalf("wallet mutated: %+v", w)
	}
	if bets, _ := f.store.ListBets(context.Background(), "M1"); len(bets) != 0 {
		t.Fatalf("bet recorded after close: %+v", bets)
	}
}

func TestPlaceConcurrentSameWallet(t *testing.T) {
	f := newFixture(t, "0")
	f.store = memstore.New(5 * time.Second)
	f.store.PutMarket(betting.Market{ID: "M1", EventID: "EV1", Status: betting.MarketActive, MinStakeCents: 10, MaxStakeCents: 5000})
	_, _, _ = f.store.Deposit(context.Background(), "u1", 500)
	svc := NewService(f.store, f.prices, f.pub, zap.NewNop(), decimal.Zero, Hooks{})

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Place(context.Background(), backReq("2.00", 100)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	w := f.wallet(t)
	if ok != 5 || w.BalanceCents != 0 || w.LockedCents != 500 {
		t.Fatalf("placed=%d wallet=%+v want 5 bets, balance 0, locked 500", ok, w)
	}
}

func TestPlacePublishFailureKeepsBet(t *testing.T) {
	f := newFixture(t, "0")
	f.pub.fail = true
	res, err := f.svc.Place(context.Background(), backReq("2.00", 100))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if b, err := f.svc.Get(context.Background(), res.Bet.ID); err != nil || b.Status != betting.BetPending {
		t.Fatalf("bet=%+v err=%v", b, err)
	}
}
