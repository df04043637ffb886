package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/shared/memstore"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

type recPub struct {
	mu      sync.Mutex
	bets    []events.BetSettled
	markets []events.MarketSettled
}

func (p *recPub) PublishBetSettled(_ context.Context, e events.BetSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bets = append(p.bets, e)
	return nil
}

func (p *recPub) PublishMarketSettled(_ context.Context, e events.MarketSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markets = append(p.markets, e)
	return nil
}

type fakeProvider map[string]struct {
	declared bool
	code     string
	err      error
}

func (f fakeProvider) Result(_ context.Context, _, marketID string) (bool, string, error) {
	r := f[marketID]
	return r.declared, r.code, r.err
}

func newStore(t *testing.T, markets ...string) *memstore.Store {
	t.Helper()
	st := memstore.New(time.Second)
	for _, id := range markets {
		st.PutMarket(betting.Market{ID: id, EventID: "EV-" + id, Type: betting.MarketMatchOdds,
			Status: betting.MarketActive, MinStakeCents: 10, MaxStakeCents: 5000})
	}
	return st
}

func deposit(t *testing.T, st *memstore.Store, user string, cents int64) {
	t.Helper()
	if _, _, err := st.Deposit(context.Background(), user, cents); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func place(t *testing.T, st *memstore.Store, id, user, market, sel string, typ betting.BetType, odds string, stake int64) {
	t.Helper()
	o := decimal.RequireFromString(odds)
	b := betting.Bet{
		ID: id, UserID: user, MarketID: market, SelectionID: sel, Type: typ, Odds: o,
		StakeCents: stake, LockedCents: betting.RequiredFunds(typ, stake, o),
		PotentialPayoutCents: betting.PotentialPayout(typ, stake, o), PlacedAt: time.Now(),
	}
	if _, err := st.PlaceBet(context.Background(), b); err != nil {
		t.Fatalf("place %s: %v", id, err)
	}
}

func wallet(t *testing.T, st *memstore.Store, user string) betting.Wallet {
	t.Helper()
	w, err := st.GetWallet(context.Background(), user)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return w
}

func newEngine(st Store, p ResultProvider, pub Publisher) *Engine {
	return New(st, p, pub, zap.NewNop(), 4, Hooks{})
}

func TestSettleBackWin(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M", "S", betting.Back, "2.00", 100)
	if w := wallet(t, st, "u1"); w.BalanceCents != 400 {
		t.Fatalf("balance after placement=%d want=400", w.BalanceCents)
	}

	pub := &recPub{}
	sum, err := newEngine(st, nil, pub).Settle(context.Background(), "M", "S", betting.ModeNormal)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if sum.Won != 1 || sum.TotalPayoutCents != 200 || sum.TotalBets != 1 {
		t.Fatalf("summary=%+v", sum)
	}
	if w := wallet(t, st, "u1"); w.BalanceCents != 600 || w.LockedCents != 0 {
		t.Fatalf("wallet=%+v want balance=600", w)
	}
	b, _ := st.GetBet(context.Background(), "b1")
	if b.Status != betting.BetWon || b.SettledAt == nil {
		t.Fatalf("bet=%+v", b)
	}
	if len(pub.bets) != 1 || len(pub.markets) != 1 {
		t.Fatalf("events bets=%d markets=%d", len(pub.bets), len(pub.markets))
	}
	if m, _ := st.GetMarket(context.Background(), "M"); m.Status != betting.MarketSettled {
		t.Fatalf("market status=%s", m.Status)
	}
}

func TestSettleVoidRefunds(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M", "S", betting.Back, "2.00", 100)

	sum, err := newEngine(st, nil, nil).Settle(context.Background(), "M", "anything", betting.ModeVoid)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if sum.Void != 1 {
		t.Fatalf("summary=%+v", sum)
	}
	if w := wallet(t, st, "u1"); w.BalanceCents != 500 || w.LockedCents != 0 {
		t.Fatalf("wallet=%+v want balance=500", w)
	}
}

func TestSettleLayWinReleasesLiability(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M", "S", betting.Lay, "3.00", 100)
	if w := wallet(t, st, "u1"); w.BalanceCents != 300 || w.LockedCents != 200 {
		t.Fatalf("after placement wallet=%+v", w)
	}

	if _, err := newEngine(st, nil, nil).Settle(context.Background(), "M", "T", betting.ModeNormal); err != nil {
		t.Fatalf("settle: %v", err)
	}
	// liberação da responsabilidade (200) + stake do apostador contrário (100)
	if w := wallet(t, st, "u1"); w.BalanceCents != 600 || w.LockedCents != 0 {
		t.Fatalf("wallet=%+v want balance=600 locked=0", w)
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M", "S", betting.Back, "2.00", 100)
	eng := newEngine(st, nil, nil)

	first, err := eng.Settle(context.Background(), "M", "S", betting.ModeNormal)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	txs, _ := st.ListTransactions(context.Background(), "u1", 0)

	second, err := eng.Settle(context.Background(), "M", "S", betting.ModeNormal)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if first != second {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
	again, _ := st.ListTransactions(context.Background(), "u1", 0)
	if len(again) != len(txs) || wallet(t, st, "u1").BalanceCents != 600 {
		t.Fatalf("second settle mutated wallet")
	}

}

func TestSettleOnSettledMarketIsNoOp(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M", "S", betting.Back, "2.00", 100)
	eng := newEngine(st, nil, nil)

	first, err := eng.Settle(context.Background(), "M", "S", betting.ModeNormal)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	txs, _ := st.ListTransactions(context.Background(), "u1", 0)

	// outro resultado depois de SETTLED devolve o resumo gravado sem tocar em nada
	for _, mode := range []betting.SettlementMode{betting.ModeNormal, betting.ModeVoid} {
		got, err := eng.Settle(context.Background(), "M", "T", mode)
		if err != nil {
			t.Fatalf("settle %s after settled: %v", mode, err)
		}
		if got != first {
			t.Fatalf("summary=%+v want stored %+v", got, first)
		}
	}
	again, _ := st.ListTransactions(context.Background(), "u1", 0)
	if len(again) != len(txs) || wallet(t, st, "u1").BalanceCents != 600 {
		t.Fatalf("settled market mutated wallet")
	}
	if m, _ := st.GetMarket(context.Background(), "M"); m.ResultCode != "S" || m.SettlementMode != betting.ModeNormal {
		t.Fatalf("pinned result changed: %+v", m)
	}
}

func TestSettleConflictWhileClosed(t *testing.T) {
	st := newStore(t, "M")
	if _, _, err := st.BeginSettlement(context.Background(), "M", "S", betting.ModeNormal); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := newEngine(st, nil, nil).Settle(context.Background(), "M", "S", betting.ModeVoid); !errors.Is(err, ErrResultConflict) {
		t.Fatalf("err=%v want ErrResultConflict", err)
	}
}

func TestSettleInvalidRequests(t *testing.T) {
	eng := newEngine(newStore(t, "M"), nil, nil)
	cases := []struct {
		market, result string
		mode           betting.SettlementMode
		want           error
	}{
		{"", "S", betting.ModeNormal, ErrInvalidRequest},
		{"M", "", betting.ModeNormal, ErrInvalidRequest},
		{"M", "S", "partial", ErrInvalidRequest},
		{"MX", "S", betting.ModeNormal, ErrMarketNotFound},
	}
	for _, c := range cases {
		if _, err := eng.Settle(context.Background(), c.market, c.result, c.mode); !errors.Is(err, c.want) {
			t.Fatalf("%+v: err=%v want=%v", c, err, c.want)
		}
	}
}

// flakyStore falha a primeira liquidação de uma aposta específica
type flakyStore struct {
	*memstore.Store
	mu      sync.Mutex
	failFor map[string]bool
}

func (f *flakyStore) SettleBet(ctx context.Context, betID string, st betting.BetStatus, credit int64) (betting.Bet, bool, error) {
	f.mu.Lock()
	fail := f.failFor[betID]
	delete(f.failFor, betID)
	f.mu.Unlock()
	if fail {
		return betting.Bet{}, false, errors.New("connection reset")
	}
	return f.Store.SettleBet(ctx, betID, st, credit)
}

func TestSettleResumesAfterFailure(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 1000)
	place(t, st, "b1", "u1", "M", "S", betting.Back, "2.00", 100)
	place(t, st, "b2", "u1", "M", "S", betting.Back, "3.00", 100)
	flaky := &flakyStore{Store: st, failFor: map[string]bool{"b2": true}}
	eng := newEngine(flaky, nil, nil)

	if _, err := eng.Settle(context.Background(), "M", "S", betting.ModeNormal); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err=%v want ErrIncomplete", err)
	}
	if m, _ := st.GetMarket(context.Background(), "M"); m.Status != betting.MarketClosed {
		t.Fatalf("market status=%s want CLOSED", m.Status)
	}

	sum, err := eng.Settle(context.Background(), "M", "S", betting.ModeNormal)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if sum.Won != 2 || sum.TotalPayoutCents != 500 {
		t.Fatalf("summary=%+v", sum)
	}
	// 1000 - 200 bloqueados + 200 + 300
	if w := wallet(t, st, "u1"); w.BalanceCents != 1300 || w.LockedCents != 0 {
		t.Fatalf("wallet=%+v", w)
	}
}

func TestSettleForceClosesAndRejectsLateBets(t *testing.T) {
	st := newStore(t, "M")
	deposit(t, st, "u1", 500)
	if _, err := newEngine(st, nil, nil).Settle(context.Background(), "M", "S", betting.ModeNormal); err != nil {
		t.Fatalf("settle: %v", err)
	}
	_, err := st.PlaceBet(context.Background(), betting.Bet{ID: "late", UserID: "u1", MarketID: "M", LockedCents: 100})
	if !errors.Is(err, betting.ErrMarketNotActive) {
		t.Fatalf("err=%v want ErrMarketNotActive", err)
	}
}

func TestConcurrentSettleConservesMoney(t *testing.T) {
	st := newStore(t, "M")
	var deposited, locked int64
	for i := 0; i < 20; i++ {
		user := fmt.Sprintf("u%d", i%5)
		if i < 5 {
			deposit(t, st, user, 10_000)
			deposited += 10_000
		}
		typ, sel := betting.Back, "S"
		if i%3 == 0 {
			typ, sel = betting.Lay, "T"
		}
		place(t, st, fmt.Sprintf("b%d", i), user, "M", sel, typ, "1.55", int64(100+i*7))
		locked += betting.RequiredFunds(typ, int64(100+i*7), decimal.RequireFromString("1.55"))
	}
	if bal, lk := st.Totals(); bal+lk != deposited || lk != locked {
		t.Fatalf("after placement balance+locked=%d want=%d", bal+lk, deposited)
	}

	pub := &recPub{}
	eng := newEngine(st, nil, pub)
	var wg sync.WaitGroup
	sums := make([]betting.SettlementSummary, 5)
	for i := range sums {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sums[i], _ = eng.Settle(context.Background(), "M", "S", betting.ModeHalfWin)
		}(i)
	}
	wg.Wait()

	if len(pub.bets) != 20 {
		t.Fatalf("bet_settled events=%d want=20 (exactly once)", len(pub.bets))
	}
	var credited int64
	for _, e := range pub.bets {
		credited += e.PayoutCents
	}
	bal, lk := st.Totals()
	if lk != 0 || bal != deposited-locked+credited {
		t.Fatalf("balance=%d locked=%d want balance=%d", bal, lk, deposited-locked+credited)
	}
	if sums[0].TotalPayoutCents != credited {
		t.Fatalf("summary payout=%d credited=%d", sums[0].TotalPayoutCents, credited)
	}
}

func TestBatchSettleIndependent(t *testing.T) {
	st := newStore(t, "M1", "M2")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M1", "S", betting.Back, "2.00", 100)
	place(t, st, "b2", "u1", "M2", "S", betting.Back, "2.00", 100)

	res := newEngine(st, nil, nil).BatchSettle(context.Background(), []BatchItem{
		{MarketID: "M1", ResultCode: "S"},
		{MarketID: "MX", ResultCode: "S"},
		{MarketID: "M2", ResultCode: "S", Mode: betting.ModeVoid},
	})
	if len(res) != 3 || res[0].Err != nil || !errors.Is(res[1].Err, ErrMarketNotFound) || res[2].Err != nil {
		t.Fatalf("results=%+v", res)
	}
	if res[0].Summary.Won != 1 || res[2].Summary.Void != 1 {
		t.Fatalf("summaries=%+v / %+v", res[0].Summary, res[2].Summary)
	}
}

func TestAutoSettle(t *testing.T) {
	st := newStore(t, "M1", "M2", "M3")
	deposit(t, st, "u1", 1000)
	place(t, st, "b1", "u1", "M1", "S", betting.Back, "2.00", 100)
	place(t, st, "b2", "u1", "M2", "S", betting.Back, "2.00", 100)
	place(t, st, "b3", "u1", "M3", "S", betting.Back, "2.00", 100)

	prov := fakeProvider{
		"M1": {declared: true, code: "S"},
		"M2": {declared: false},
		"M3": {err: errors.New("upstream unavailable")},
	}
	eng := newEngine(st, prov, nil)

	sweep, err := eng.AutoSettle(context.Background())
	if err != nil {
		t.Fatalf("auto-settle: %v", err)
	}
	if sweep.Markets != 3 || sweep.Settled != 1 || sweep.Undeclared != 1 || sweep.Failed != 1 || sweep.PayoutCents != 200 {
		t.Fatalf("sweep=%+v", sweep)
	}
	if b, _ := st.GetBet(context.Background(), "b2"); b.Status != betting.BetPending {
		t.Fatalf("undeclared market bet status=%s", b.Status)
	}

	before := wallet(t, st, "u1")
	again, err := eng.AutoSettle(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Settled != 0 || again.Markets != 2 {
		t.Fatalf("second sweep=%+v", again)
	}
	if after := wallet(t, st, "u1"); after != before {
		t.Fatalf("second sweep changed wallet: %+v -> %+v", before, after)
	}
}

func TestAutoSettleResumesPinnedMarket(t *testing.T) {
	st := newStore(t, "M1")
	deposit(t, st, "u1", 500)
	place(t, st, "b1", "u1", "M1", "S", betting.Back, "2.00", 100)
	if _, _, err := st.BeginSettlement(context.Background(), "M1", "S", betting.ModeVoid); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// o fornecedor não é consultado para um mercado com resultado fixado
	prov := fakeProvider{"M1": {err: errors.New("should not be called")}}
	sweep, err := newEngine(st, prov, nil).AutoSettle(context.Background())
	if err != nil || sweep.Settled != 1 {
		t.Fatalf("sweep=%+v err=%v", sweep, err)
	}
	if w := wallet(t, st, "u1"); w.BalanceCents != 500 {
		t.Fatalf("wallet=%+v want void refund", w)
	}
}
