package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/fetch"
	"github.com/Veraticus/the-spice-must-talk/internal/intent"
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/pii"
	"github.com/Veraticus/the-spice-must-talk/internal/prompt"
	"github.com/Veraticus/the-spice-must-talk/internal/session"
	"github.com/Veraticus/the-spice-must-talk/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var (
	alice = model.Identity{ID: "u1", Username: "alice", Kind: model.IdentityAuthenticated}
	guest = model.Identity{ID: "guest-1", Kind: model.IdentityGuest}
)

type fakeInvoker struct {
	err      error
	reply    string
	reason   llm.FailureReason
	requests []llm.Request
	mu       sync.Mutex
}

func (f *fakeInvoker) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.Response{Err: err}, err
	}
	if f.err != nil {
		resp := llm.Response{
			Err:      f.err,
			Attempts: []llm.Attempt{{ProviderID: "groq", Err: f.err, Reason: f.reason}},
		}
		return resp, f.err
	}
	provider := req.Preference
	if provider == "" {
		provider = "groq"
	}
	return llm.Response{Text: f.reply, ProviderID: provider, Succeeded: true}, nil
}

func (f *fakeInvoker) calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

type brokenPrompts struct{}

func (brokenPrompts) Build(*fetch.Result, model.IdentityKind) (string, error) {
	return "", errors.New("template exploded")
}

type harness struct {
	svc      *Service
	invoker  *fakeInvoker
	sessions *session.Store
}

func newHarness(t *testing.T, invoker *fakeInvoker, opts ...Option) *harness {
	t.Helper()

	db := testutil.SetupTestDB(t)
	testutil.NewRecordBuilder(t, alice.ID, testNow).
		WithFixture(testutil.FixtureHousehold).
		Seed(db)

	clock := func() time.Time { return testNow }
	assembler, err := prompt.NewAssembler(prompt.DefaultOptions(), prompt.WithClock(clock))
	require.NoError(t, err)

	sessions := session.NewStore(session.WithLogger(common.DiscardLogger()))
	opts = append([]Option{WithClock(clock), WithLogger(common.DiscardLogger())}, opts...)
	svc, err := NewService(Deps{
		Sanitizer: pii.NewSanitizer(),
		Resolver:  intent.NewResolver(intent.WithClock(clock)),
		Fetcher:   fetch.NewFetcher(db.Storage, fetch.WithClock(clock), fetch.WithLogger(common.DiscardLogger())),
		Prompts:   assembler,
		Invoker:   invoker,
		Sessions:  sessions,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &harness{svc: svc, invoker: invoker, sessions: sessions}
}

func TestNewService_MissingDeps(t *testing.T) {
	_, err := NewService(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sanitizer")
}

func TestHandleQuery_Authenticated(t *testing.T) {
	h := newHarness(t, &fakeInvoker{reply: "You spent ₹1,950 this month."})
	ctx := context.Background()

	reply, err := h.svc.HandleQuery(ctx, alice, "How much did I spend this month?")
	require.NoError(t, err)

	assert.Equal(t, "You spent ₹1,950 this month.", reply.Text)
	assert.Equal(t, "groq", reply.ProviderID)
	assert.Equal(t, model.IdentityAuthenticated, reply.Metadata.ResponseType)
	assert.Equal(t, model.CategoryLedger, reply.Metadata.Intent)
	assert.Equal(t, []model.Category{model.CategoryLedger}, reply.Metadata.Categories)
	assert.False(t, reply.Metadata.IsFallback)
	assert.False(t, reply.Metadata.PIIMasked)

	calls := h.invoker.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].SystemPrompt, "RECENT TRANSACTIONS:")
	assert.Contains(t, calls[0].SystemPrompt, "Groceries")
	assert.NotContains(t, calls[0].SystemPrompt, "YOUR GOALS:")
	assert.Empty(t, calls[0].History)

	history := h.svc.GetHistory(alice)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "How much did I spend this month?", history[0].Content)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, reply.Text, history[1].Content)
}

func TestHandleQuery_HistoryCarriesForward(t *testing.T) {
	h := newHarness(t, &fakeInvoker{reply: "ok"})
	ctx := context.Background()

	_, err := h.svc.HandleQuery(ctx, alice, "Show my goals")
	require.NoError(t, err)
	_, err = h.svc.HandleQuery(ctx, alice, "And reminders?", WithProvider("gemini"))
	require.NoError(t, err)

	calls := h.invoker.calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1].History, 2)
	assert.Equal(t, "gemini", calls[1].Preference)
	assert.Len(t, h.svc.GetHistory(alice), 4)
}

func TestHandleQuery_MasksSensitiveData(t *testing.T) {
	h := newHarness(t, &fakeInvoker{reply: "I can't see card details."})

	reply, err := h.svc.HandleQuery(context.Background(), alice, "My card is 4111 1111 1111 1111 and it was declined")
	require.NoError(t, err)

	calls := h.invoker.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "My card is 4111********1111 and it was declined", calls[0].UserText)
	assert.NotContains(t, calls[0].SystemPrompt, "4111 1111 1111 1111")

	assert.True(t, reply.Metadata.PIIMasked)
	assert.Equal(t,
		"Sensitive info (credit card) detected and partially masked for your privacy.\n\nI can't see card details.",
		reply.Text)

	history := h.svc.GetHistory(alice)
	require.Len(t, history, 2)
	assert.Equal(t, "My card is 4111********1111 and it was declined", history[0].Content)
	assert.Equal(t, "I can't see card details.", history[1].Content)
}

func TestHandleQuery_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		identity model.Identity
		query    string
		reason   llm.FailureReason
		wantKind FallbackKind
	}{
		{name: "timeout", identity: alice, query: "Show my goals", reason: llm.ReasonTimeout, wantKind: FallbackTimeout},
		{name: "network", identity: alice, query: "Show my goals", reason: llm.ReasonNetwork, wantKind: FallbackNetwork},
		{name: "rate limit", identity: alice, query: "Show my goals", reason: llm.ReasonRateLimit, wantKind: FallbackRateLimit},
		{name: "auth maps to default", identity: alice, query: "Show my goals", reason: llm.ReasonAuth, wantKind: FallbackDefault},
		{name: "guest timeout", identity: guest, query: "What is compound interest?", reason: llm.ReasonTimeout, wantKind: FallbackTimeout},
		{name: "guest default", identity: guest, query: "What is compound interest?", reason: llm.ReasonUnknown, wantKind: FallbackDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeInvoker{err: llm.ErrAllProvidersFailed, reason: tt.reason})

			reply, err := h.svc.HandleQuery(context.Background(), tt.identity, tt.query)
			require.NoError(t, err)

			assert.Equal(t, ProviderFallback, reply.ProviderID)
			assert.Equal(t, FallbackMessage(tt.identity.Kind, tt.wantKind), reply.Text)
			assert.True(t, reply.Metadata.IsFallback)
			assert.True(t, reply.Metadata.Error)
			assert.Equal(t, tt.wantKind, reply.Metadata.ErrorType)
			assert.Equal(t, tt.identity.Kind, reply.Metadata.ResponseType)
			assert.Empty(t, h.sessions.History(tt.identity.ID))
		})
	}
}

// scriptedProvider is an llm.Provider that returns a fixed answer or error.
type scriptedProvider struct {
	id    string
	reply string
	err   error

	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) ID() string { return p.id }

func (p *scriptedProvider) Send(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.reply, p.err
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestHandleQuery_FallbackProviderAppendsOnce(t *testing.T) {
	h := newHarness(t, &fakeInvoker{})

	groq := &scriptedProvider{id: "groq", err: errors.New("503 service unavailable")}
	gemini := &scriptedProvider{id: "gemini", reply: "answer from gemini"}
	reg := llm.NewRegistry()
	require.NoError(t, reg.Register(groq))
	require.NoError(t, reg.Register(gemini))
	h.svc.deps.Invoker = llm.NewController(reg, llm.ControllerConfig{
		Default:  "groq",
		Fallback: "gemini",
		Timeout:  time.Second,
	}, common.DiscardLogger())

	reply, err := h.svc.HandleQuery(context.Background(), alice, "How much did I spend this month?")
	require.NoError(t, err)

	assert.Equal(t, "gemini", reply.ProviderID)
	assert.Equal(t, "answer from gemini", reply.Text)
	assert.False(t, reply.Metadata.IsFallback)
	assert.Equal(t, 1, groq.callCount())
	assert.Equal(t, 1, gemini.callCount())

	history := h.svc.GetHistory(alice)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "How much did I spend this month?", history[0].Content)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, "answer from gemini", history[1].Content)
}

func TestHandleQuery_PromptFailureFallsBack(t *testing.T) {
	h := newHarness(t, &fakeInvoker{reply: "unused"})
	h.svc.deps.Prompts = brokenPrompts{}

	reply, err := h.svc.HandleQuery(context.Background(), alice, "Show my goals")
	require.NoError(t, err)
	assert.Equal(t, ProviderFallback, reply.ProviderID)
	assert.Empty(t, h.invoker.calls())
	assert.Empty(t, h.svc.GetHistory(alice))
}

func TestHandleQuery_Errors(t *testing.T) {
	h := newHarness(t, &fakeInvoker{reply: "ok"})

	t.Run("empty message", func(t *testing.T) {
		for _, text := range []string{"", "   ", "\n\t"} {
			_, err := h.svc.HandleQuery(context.Background(), alice, text)
			assert.ErrorIs(t, err, common.ErrEmptyMessage)
		}
		assert.Empty(t, h.invoker.calls())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.svc.HandleQuery(ctx, alice, "Show my goals")
		assert.ErrorIs(t, err, context.Canceled)

		_, err = h.svc.HandleQuery(ctx, guest, "What is a budget?")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, h.svc.GetHistory(alice))
	})
}

func TestHandleQuery_Guest(t *testing.T) {
	t.Run("personal question asks to sign in", func(t *testing.T) {
		h := newHarness(t, &fakeInvoker{reply: "unused"})

		reply, err := h.svc.HandleQuery(context.Background(), guest, "How much did I spend last week?")
		require.NoError(t, err)

		assert.Equal(t, SignInPrompt, reply.Text)
		assert.Equal(t, ProviderInformational, reply.ProviderID)
		assert.True(t, reply.Metadata.NeedsAuthentication)
		assert.Equal(t, model.IdentityGuest, reply.Metadata.ResponseType)
		assert.Empty(t, h.invoker.calls())
	})

	t.Run("general question is answered without records", func(t *testing.T) {
		h := newHarness(t, &fakeInvoker{reply: "A budget is a plan for your money."})

		reply, err := h.svc.HandleQuery(context.Background(), guest, "What is a budget?")
		require.NoError(t, err)

		assert.Equal(t, "A budget is a plan for your money.", reply.Text)
		assert.False(t, reply.Metadata.NeedsAuthentication)

		calls := h.invoker.calls()
		require.Len(t, calls, 1)
		assert.Empty(t, calls[0].History)
		assert.NotContains(t, calls[0].SystemPrompt, "RECENT TRANSACTIONS")
		assert.NotContains(t, calls[0].SystemPrompt, "Groceries")
		assert.Empty(t, h.svc.GetHistory(guest))
		assert.Empty(t, h.sessions.History(guest.ID))
	})

	t.Run("repeat question served from cache", func(t *testing.T) {
		h := newHarness(t, &fakeInvoker{reply: "Save three to six months of expenses."})
		ctx := context.Background()

		first, err := h.svc.HandleQuery(ctx, guest, "How do I build an emergency fund?")
		require.NoError(t, err)
		second, err := h.svc.HandleQuery(ctx, guest, "how do i  build an emergency fund?")
		require.NoError(t, err)

		assert.Equal(t, first.Text, second.Text)
		assert.True(t, second.Metadata.Cached)
		assert.Len(t, h.invoker.calls(), 1)
	})

	t.Run("cache disabled", func(t *testing.T) {
		h := newHarness(t, &fakeInvoker{reply: "ok"}, WithGuestCacheTTL(0))
		ctx := context.Background()

		for range 2 {
			_, err := h.svc.HandleQuery(ctx, guest, "What is a budget?")
			require.NoError(t, err)
		}
		assert.Len(t, h.invoker.calls(), 2)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		invoker := &fakeInvoker{err: llm.ErrAllProvidersFailed, reason: llm.ReasonNetwork}
		h := newHarness(t, invoker)
		ctx := context.Background()

		_, err := h.svc.HandleQuery(ctx, guest, "What is a budget?")
		require.NoError(t, err)

		invoker.mu.Lock()
		invoker.err = nil
		invoker.reply = "A plan."
		invoker.mu.Unlock()

		reply, err := h.svc.HandleQuery(ctx, guest, "What is a budget?")
		require.NoError(t, err)
		assert.Equal(t, "A plan.", reply.Text)
		assert.False(t, reply.Metadata.Cached)
	})
}

func TestService_SessionLifecycle(t *testing.T) {
	h := newHarness(t, &fakeInvoker{reply: "ok"})
	ctx := context.Background()

	_, err := h.svc.HandleQuery(ctx, alice, "Show my goals")
	require.NoError(t, err)
	require.Len(t, h.svc.GetHistory(alice), 2)

	h.svc.Disconnect(alice)
	assert.Len(t, h.svc.GetHistory(alice), 2, "signed-in history survives a disconnect")

	h.svc.ClearHistory(ctx, alice)
	assert.Empty(t, h.svc.GetHistory(alice))

	h.sessions.Append(ctx, guest.ID, model.Turn{Role: model.RoleUser, Content: "hi"})
	h.svc.Disconnect(guest)
	assert.Empty(t, h.sessions.History(guest.ID))
}

func TestService_Connect(t *testing.T) {
	mirror := testutil.SetupTestDB(t).Storage
	ctx := context.Background()
	require.NoError(t, mirror.AppendTurns(ctx, alice.ID, []model.Turn{
		{Role: model.RoleUser, Content: "earlier question", CreatedAt: testNow},
		{Role: model.RoleAssistant, Content: "earlier answer", CreatedAt: testNow},
	}))

	sessions := session.NewStore(
		session.WithMirror(mirror, 8),
		session.WithLogger(common.DiscardLogger()),
	)
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	assembler, err := prompt.NewAssembler(prompt.DefaultOptions())
	require.NoError(t, err)
	svc, err := NewService(Deps{
		Sanitizer: pii.NewSanitizer(),
		Resolver:  intent.NewResolver(),
		Fetcher:   fetch.NewFetcher(mirror),
		Prompts:   assembler,
		Invoker:   &fakeInvoker{reply: "ok"},
		Sessions:  sessions,
	}, WithGuestCacheTTL(0), WithLogger(common.DiscardLogger()))
	require.NoError(t, err)

	svc.Connect(ctx, guest)
	assert.Empty(t, svc.GetHistory(guest))

	svc.Connect(ctx, alice)
	history := svc.GetHistory(alice)
	require.Len(t, history, 2)
	assert.Equal(t, "earlier question", history[0].Content)
}

func TestSuggestions(t *testing.T) {
	assert.Contains(t, Suggestions(guest), "How do I build an emergency fund?")
	assert.Contains(t, Suggestions(alice), "Analyze my spending patterns")

	s := Suggestions(guest)
	s[0] = "changed"
	assert.NotEqual(t, "changed", Suggestions(guest)[0])
}

func TestFallbackFor(t *testing.T) {
	assert.Equal(t, FallbackNetwork, FallbackFor(llm.ReasonNetwork))
	assert.Equal(t, FallbackTimeout, FallbackFor(llm.ReasonTimeout))
	assert.Equal(t, FallbackRateLimit, FallbackFor(llm.ReasonRateLimit))
	assert.Equal(t, FallbackDefault, FallbackFor(llm.ReasonUnknown))
	assert.Equal(t, FallbackDefault, FallbackFor(llm.ReasonNone))

	assert.Contains(t, FallbackMessage(model.IdentityGuest, FallbackDefault), "please sign in")
	assert.Equal(t,
		"I'm having trouble processing your request right now. Please try again in a moment.",
		FallbackMessage(model.IdentityAuthenticated, FallbackKind("bogus")))
}
