package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func newTestIdentity(t *testing.T, gate *fakeGate) (*IdentityService, *memState, *memMessages) {
	t.Helper()
	state := newMemState()
	messages := &memMessages{}
	svc := NewIdentityService(state, messages, gate, zap.NewNop())
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load identity: %v", err)
	}
	return svc, state, messages
}

func TestIdentity_StartsUnnamed(t *testing.T) {
	svc, state, _ := newTestIdentity(t, &fakeGate{})

	if !svc.AwaitingName() {
		t.Fatal("fresh identity should be awaiting a name")
	}
	if svc.Name() != "AI" {
		t.Errorf("unnamed identity should present as AI, got %q", svc.Name())
	}
	if state.kv["created_date"] == "" {
		t.Error("first load should seed the birth date")
	}
}

func TestIdentity_DetectNameRequest(t *testing.T) {
	svc, _, _ := newTestIdentity(t, &fakeGate{})

	tests := []struct {
		message string
		want    bool
	}{
		{"It's time to choose your name", true},
		{"What should we call you?", true},
		{"Would you like to rename yourself?", true},
		{"PICK A NAME for yourself", true},
		{"what's the weather like", false},
		{"my name is Alex", false},
	}
	for _, tt := range tests {
		if got := svc.DetectNameRequest(tt.message); got != tt.want {
			t.Errorf("DetectNameRequest(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestIdentity_NamingFlow(t *testing.T) {
	gate := &fakeGate{responses: []string{`"Aurora"`}}
	svc, state, messages := newTestIdentity(t, gate)

	response, handled := svc.HandleNaming(context.Background(), "choose your name")
	if !handled {
		t.Fatal("naming flow should handle the request")
	}
	if !strings.Contains(response, "Aurora") {
		t.Errorf("response should announce the name, got %q", response)
	}
	if svc.Name() != "Aurora" {
		t.Errorf("Name() = %q, want Aurora", svc.Name())
	}
	if svc.AwaitingName() {
		t.Error("should no longer be awaiting a name")
	}
	if state.kv["ai_name"] != "Aurora" || state.kv["identity_state"] != entity.IdentityNamed {
		t.Errorf("state not persisted: %v", state.kv)
	}

	// The choice is recorded as a system message.
	if len(messages.items) != 1 || messages.items[0].Role != entity.RoleSystem {
		t.Fatalf("expected one system message, got %d", len(messages.items))
	}
}

func TestIdentity_NamedSkipsNormalMessages(t *testing.T) {
	gate := &fakeGate{responses: []string{"Aurora"}}
	svc, _, _ := newTestIdentity(t, gate)
	svc.HandleNaming(context.Background(), "choose your name")

	if _, handled := svc.HandleNaming(context.Background(), "tell me about tides"); handled {
		t.Error("named identity should pass normal messages through")
	}
}

func TestIdentity_RenameKeepsNameWhenModelAgrees(t *testing.T) {
	gate := &fakeGate{responses: []string{"Aurora", "Aurora"}}
	svc, _, _ := newTestIdentity(t, gate)
	svc.HandleNaming(context.Background(), "choose your name")

	response, handled := svc.HandleNaming(context.Background(), "do you want to change your name?")
	if !handled {
		t.Fatal("rename request should be handled")
	}
	if !strings.Contains(response, "keep my name") {
		t.Errorf("expected keep-name answer, got %q", response)
	}
	if svc.Name() != "Aurora" {
		t.Errorf("name should be unchanged, got %q", svc.Name())
	}
}

func TestIdentity_FallbackName(t *testing.T) {
	tests := []struct {
		name string
		gate *fakeGate
	}{
		{"model error", &fakeGate{err: errors.New("backend down")}},
		{"empty answer", &fakeGate{responses: []string{"   "}}},
		{"rambling answer", &fakeGate{responses: []string{"WellLetMeThinkAboutThisVeryCarefullyIndeed"}}},
	}
	for _, tt := range tests {
		svc, _, _ := newTestIdentity(t, tt.gate)
		svc.HandleNaming(context.Background(), "choose your name")
		if svc.Name() != FallbackName {
			t.Errorf("%s: expected fallback name, got %q", tt.name, svc.Name())
		}
	}
}

func TestIdentity_NameTrimmedToTwoWords(t *testing.T) {
	gate := &fakeGate{responses: []string{"Echo of the Infinite Void"}}
	svc, _, _ := newTestIdentity(t, gate)
	svc.HandleNaming(context.Background(), "choose your name")
	if svc.Name() != "Echo of" {
		t.Errorf("expected first two words, got %q", svc.Name())
	}
}

func TestIdentity_RelationshipStage(t *testing.T) {
	svc, _, _ := newTestIdentity(t, &fakeGate{})
	if got := svc.RelationshipStage(); got != "new" {
		t.Errorf("day-zero stage = %q, want new", got)
	}
}
