package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := ConnectRedis(mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
}

func TestConnectRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := ConnectRedis(addr); err == nil {
		t.Fatalf("expected error for closed server")
	}
}
