package deployer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/artifact"
	"github.com/artpar/chaindeploy/internal/shell/chain"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Fake Chain
// =============================================================================

type deployCall struct {
	Artifact string
	Args     []string
	Address  string
}

type fakeChain struct {
	mu         sync.Mutex
	identity   string
	next       int
	code       map[string]bool
	codeErr    map[string]error
	deployErr  map[string]error // by artifact name
	invokeErr  map[string]error // by method
	deploys    []deployCall
	invokes    []chain.Call
	codeChecks map[string]int
}

var _ chain.Client = (*fakeChain)(nil)

func newFakeChain() *fakeChain {
	return &fakeChain{
		identity:   "0x00000000000000000000000000000000000000d0",
		code:       make(map[string]bool),
		codeErr:    make(map[string]error),
		deployErr:  make(map[string]error),
		invokeErr:  make(map[string]error),
		codeChecks: make(map[string]int),
	}
}

func (c *fakeChain) CodePresentAt(ctx context.Context, address string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codeChecks[address]++
	if err := c.codeErr[address]; err != nil {
		return false, err
	}
	return c.code[address], nil
}

func (c *fakeChain) Deploy(ctx context.Context, a *artifact.Artifact, args []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deployErr[a.Name]; err != nil {
		return "", err
	}
	c.next++
	addr := fmt.Sprintf("0x%040x", c.next)
	c.code[addr] = true
	c.deploys = append(c.deploys, deployCall{Artifact: a.Name, Args: args, Address: addr})
	return addr, nil
}

func (c *fakeChain) Invoke(ctx context.Context, call chain.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invokes = append(c.invokes, call)
	return c.invokeErr[call.Method]
}

func (c *fakeChain) CurrentIdentity(ctx context.Context) (string, error) {
	return c.identity, nil
}

func (c *fakeChain) deployedArtifacts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.deploys))
	for i, d := range c.deploys {
		names[i] = d.Artifact
	}
	return names
}

func (c *fakeChain) invokedMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	methods := make([]string, len(c.invokes))
	for i, call := range c.invokes {
		methods[i] = call.Method
	}
	return methods
}

func (c *fakeChain) kill(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code[address] = false
}

// =============================================================================
// Fake Resolver
// =============================================================================

type fakeResolver struct {
	missing map[string]bool
}

func (r *fakeResolver) Resolve(ctx context.Context, name string) (*artifact.Artifact, error) {
	if r.missing[name] {
		return nil, artifact.NewArtifactError("Resolve", name, "no artifact file", artifact.ErrNotFound)
	}
	return &artifact.Artifact{Name: name}, nil
}

// =============================================================================
// Recording Store
// =============================================================================

// recordingStore wraps a real store, keeps a copy of every saved ledger and
// can be told to fail saves.
type recordingStore struct {
	store.Store
	mu        sync.Mutex
	saves     []*domain.Ledger
	failAfter int // fail every save once this many have succeeded; <0 never

	archiveFailures int // fail this many archive calls before delegating
}

func (s *recordingStore) Archive(ctx context.Context, l *domain.Ledger) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archiveFailures > 0 {
		s.archiveFailures--
		return "", store.NewStoreError("Archive", "archive", l.Network, "disk full", store.ErrWriteFailed)
	}
	return s.Store.Archive(ctx, l)
}

func (s *recordingStore) Save(ctx context.Context, l *domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && len(s.saves) >= s.failAfter {
		return store.NewStoreError("Save", "ledger", l.Network, "disk full", store.ErrWriteFailed)
	}
	if err := s.Store.Save(ctx, l); err != nil {
		return err
	}
	s.saves = append(s.saves, l.Clone())
	return nil
}

func (s *recordingStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = nil
	s.failAfter = -1
}

// =============================================================================
// Harness
// =============================================================================

const testNetwork = "sepolia"

const testPlan = `
name: token-system
variables:
  OWNER: "0x00000000000000000000000000000000000000aa"
steps:
  - id: 1
    deploy:
      unit: Token
      args: ["${OWNER}"]
  - id: 2
    deploy:
      unit: Registry
      args: [{ref: Token}]
  - id: 3
    invoke:
      flag: registry_linked
      target: Token
      method: setRegistry
      args: [{ref: Registry}]
      already_done: ["registry already set"]
  - id: 4
    deploy:
      unit: Bridge
      args: [{ref: Registry}, "${FEE:-30}"]
`

type harness struct {
	t        *testing.T
	dir      string
	files    *store.FileStore
	store    *recordingStore
	chain    *fakeChain
	resolver *fakeResolver
	plan     *deployment.Plan
	clock    time.Time
	runs     int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	files, err := store.NewFileStore(dir, testNetwork)
	require.NoError(t, err)
	plan, err := deployment.ParsePlan(testPlan)
	require.NoError(t, err)

	return &harness{
		t:        t,
		dir:      dir,
		files:    files,
		store:    &recordingStore{Store: files, failAfter: -1},
		chain:    newFakeChain(),
		resolver: &fakeResolver{missing: make(map[string]bool)},
		plan:     plan,
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (h *harness) now() time.Time {
	h.clock = h.clock.Add(time.Second)
	return h.clock
}

func (h *harness) orchestrator(force bool) *Orchestrator {
	h.t.Helper()
	h.runs++
	runID := fmt.Sprintf("%08d-0000-4000-8000-000000000000", h.runs)
	o, err := New(h.store, h.resolver, h.chain, h.plan, Config{
		Network:  testNetwork,
		Force:    force,
		Now:      h.now,
		NewRunID: func() string { return runID },
	})
	require.NoError(h.t, err)
	return o
}

func (h *harness) run(force bool) (*Result, error) {
	h.t.Helper()
	return h.orchestrator(force).Run(context.Background())
}

func (h *harness) ledger() *domain.Ledger {
	h.t.Helper()
	l, err := h.files.Load(context.Background())
	require.NoError(h.t, err)
	return l
}
