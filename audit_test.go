package goAuthClient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/MrEthical07/goAuthClient/session"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	srv, mock := newAuthServer(t)
	srv.AddUser("user@example.com", "secret", session.RoleUser)
	sink := &countingSink{}
	h := newHarness(t, srv.Handler(), mock, nil, func(b *Builder) { b.WithAuditSink(sink) })

	_, _ = h.client.Login(context.Background(), Credentials{Email: "user@example.com", Password: "wrong"})
	time.Sleep(30 * time.Millisecond)

	if sink.count.Load() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.count.Load())
	}
	if h.client.AuditDropped() != 0 {
		t.Fatal("disabled dispatcher must not report drops")
	}
}

func TestAuditForcedLogoutEvent(t *testing.T) {
	srv, mock := newAuthServer(t)
	srv.AddUser("user@example.com", "secret", session.RoleUser)
	sink := NewChannelSink(8)
	h := newHarness(t, srv.Handler(), mock, func(cfg *Config) {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
	}, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()

	sess, err := h.client.Login(ctx, Credentials{Email: "user@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	srv.SetRefreshMode(authtest.RefreshFail)
	if err := h.client.Refresh(ctx); err == nil {
		t.Fatal("expected refresh failure")
	}

	want := []string{AuditLoginSuccess, AuditRefreshFailure, AuditForcedLogout}
	for i, typ := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != typ {
				t.Fatalf("event %d: expected %s, got %s", i, typ, ev.EventType)
			}
			if typ == AuditRefreshFailure && ev.TrackingID != sess.TrackingID {
				t.Fatalf("refresh failure must carry the ended session's tracking id")
			}
			if typ != AuditLoginSuccess && ev.Success {
				t.Fatalf("%s must be a failure event", typ)
			}
			if ev.Metadata["trigger"] == "" && typ != AuditLoginSuccess {
				t.Fatalf("%s must record its trigger", typ)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}
