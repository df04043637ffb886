package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestIsLockTimeout(t *testing.T) {
	if !IsLockTimeout(fmt.Errorf("lock wallet: %w", &pq.Error{Code: "55P03"})) {
		t.Fatalf("55P03 not recognized")
	}
	if IsLockTimeout(&pq.Error{Code: "23505"}) || IsLockTimeout(errors.New("boom")) {
		t.Fatalf("unexpected lock timeout match")
	}
}

func TestSchemaHasCoreTables(t *testing.T) {
	for _, tbl := range []string{"markets", "bets", "wallets", "wallet_transactions", "market_settlements", "price_current"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+tbl+" ") {
			t.Fatalf("schema missing table %s", tbl)
		}
	}
}

func TestSchemaKeepsBetOddsUnscaled(t *testing.T) {
	if strings.Contains(schema, "NUMERIC(10,2)") {
		t.Fatalf("bet odds must not be rounded by the column type")
	}
	if !strings.Contains(schema, "ALTER TABLE bets ALTER COLUMN odds TYPE NUMERIC;") {
		t.Fatalf("schema must widen odds on existing databases")
	}
}
