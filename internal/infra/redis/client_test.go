package redis

import (
	"testing"

	"github.com/abelngansop-dot/studio-sub000/internal/infra/config"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisSettings{Host: "cache", Port: 6380, DB: 2, TLSEnabled: true})
	if opts.Addr != "cache:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
	if opts.TLSConfig == nil {
		t.Fatalf("expected tls config when tls is enabled")
	}

	plain := Options(config.RedisSettings{Host: "localhost", Port: 6379})
	if plain.TLSConfig != nil {
		t.Fatalf("expected no tls config by default")
	}
}
