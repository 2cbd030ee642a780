package upgrade

import (
	"context"
	"errors"
	"testing"

	"github.com/rogaldh/token-upgrade/pkg/accounts"
	"github.com/rogaldh/token-upgrade/pkg/ledger"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// testEnv holds a ledger with an old and new mint ready for migration.
type testEnv struct {
	t      *testing.T
	ledger *ledger.Ledger
	engine *Engine

	oldMint types.Pubkey
	newMint types.Pubkey
	issuer  types.Pubkey
}

// newTestEnv builds a ledger with both mints created. The issuer is the
// mint authority of both.
func newTestEnv(t *testing.T, oldDecimals, newDecimals uint8) *testEnv {
	t.Helper()

	l := ledger.New(accounts.NewMemoryDB())
	env := &testEnv{
		t:       t,
		ledger:  l,
		engine:  NewEngine(l),
		oldMint: testPubkey("old_mint"),
		newMint: testPubkey("new_mint"),
		issuer:  testPubkey("issuer"),
	}

	err := l.Run(func(txn *ledger.Txn) error {
		if err := txn.CreateMint(env.oldMint, oldDecimals, env.issuer, nil, types.TokenProgramID); err != nil {
			return err
		}
		return txn.CreateMint(env.newMint, newDecimals, env.issuer, nil, types.Token2022ProgramID)
	})
	if err != nil {
		t.Fatalf("failed to create mints: %v", err)
	}
	return env
}

// provision creates and funds the escrow, failing the test on error.
func (env *testEnv) provision(funding uint64) types.Pubkey {
	env.t.Helper()
	escrow, err := env.engine.Provision(context.Background(), env.oldMint, env.newMint, env.issuer, funding)
	if err != nil {
		env.t.Fatalf("Provision failed: %v", err)
	}
	return escrow
}

// balance reads a token account balance, failing the test on error.
func (env *testEnv) balance(addr types.Pubkey) uint64 {
	env.t.Helper()
	amount, err := env.ledger.Balance(addr)
	if err != nil {
		env.t.Fatalf("Balance(%s) failed: %v", addr, err)
	}
	return amount
}

func TestProvision_CreatesFundedEscrow(t *testing.T) {
	env := newTestEnv(t, 9, 9)
	escrow := env.provision(5_000_000)

	state, err := env.ledger.TokenAccount(escrow)
	if err != nil {
		t.Fatalf("escrow account not readable: %v", err)
	}
	if state.Mint != env.newMint {
		t.Errorf("escrow holds mint %s, want %s", state.Mint, env.newMint)
	}
	if state.Amount != 5_000_000 {
		t.Errorf("escrow balance %d, want 5000000", state.Amount)
	}

	authority, err := DeriveEscrowAuthority(env.oldMint, env.newMint, types.TokenUpgradeProgramID)
	if err != nil {
		t.Fatalf("derivation failed: %v", err)
	}
	if state.Owner != authority.Address {
		t.Errorf("escrow owned by %s, want derived authority %s", state.Owner, authority.Address)
	}
}

func TestProvision_Idempotent(t *testing.T) {
	env := newTestEnv(t, 9, 9)
	escrow := env.provision(1_000)

	again, err := env.engine.Provision(context.Background(), env.oldMint, env.newMint, env.issuer, 9_999)
	if !errors.Is(err, ErrAlreadyProvisioned) {
		t.Fatalf("expected ErrAlreadyProvisioned, got %v", err)
	}
	if again != escrow {
		t.Errorf("re-provision returned %s, want %s", again, escrow)
	}
	if got := env.balance(escrow); got != 1_000 {
		t.Errorf("re-provision changed escrow balance to %d", got)
	}
}

func TestProvision_SameMintPair(t *testing.T) {
	env := newTestEnv(t, 9, 9)

	_, err := env.engine.Provision(context.Background(), env.oldMint, env.oldMint, env.issuer, 0)
	if !errors.Is(err, ErrInvalidMintPair) {
		t.Fatalf("expected ErrInvalidMintPair, got %v", err)
	}
}

func TestProvision_MissingMint(t *testing.T) {
	env := newTestEnv(t, 9, 9)

	_, err := env.engine.Provision(context.Background(), env.oldMint, testPubkey("phantom_mint"), env.issuer, 0)
	if !errors.Is(err, ErrInvalidMintPair) {
		t.Fatalf("expected ErrInvalidMintPair, got %v", err)
	}
}

func TestProvision_WrongFundingAuthority(t *testing.T) {
	env := newTestEnv(t, 9, 9)

	_, err := env.engine.Provision(context.Background(), env.oldMint, env.newMint, testPubkey("impostor"), 100)
	if !errors.Is(err, ErrAuthorityMismatch) {
		t.Fatalf("expected ErrAuthorityMismatch, got %v", err)
	}

	// The failed funding must not have left an escrow behind.
	escrow, err := env.engine.EscrowAddress(env.oldMint, env.newMint)
	if err != nil {
		t.Fatalf("EscrowAddress failed: %v", err)
	}
	if env.ledger.HasAccount(escrow) {
		t.Error("failed provisioning left an escrow account behind")
	}
}

func TestProvision_UnfundedNeedsNoAuthority(t *testing.T) {
	env := newTestEnv(t, 9, 9)

	escrow, err := env.engine.Provision(context.Background(), env.oldMint, env.newMint, types.ZeroPubkey, 0)
	if err != nil {
		t.Fatalf("unfunded provisioning failed: %v", err)
	}
	if got := env.balance(escrow); got != 0 {
		t.Errorf("unfunded escrow balance %d, want 0", got)
	}
}

func TestFund_TopsUp(t *testing.T) {
	env := newTestEnv(t, 9, 9)
	escrow := env.provision(1_000)

	funded, err := env.engine.Fund(context.Background(), env.oldMint, env.newMint, env.issuer, 500)
	if err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if funded != escrow {
		t.Errorf("Fund returned %s, want %s", funded, escrow)
	}
	if got := env.balance(escrow); got != 1_500 {
		t.Errorf("escrow balance %d after top-up, want 1500", got)
	}
}

func TestFund_MissingEscrow(t *testing.T) {
	env := newTestEnv(t, 9, 9)

	_, err := env.engine.Fund(context.Background(), env.oldMint, env.newMint, env.issuer, 500)
	if !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
}

func TestFund_WrongAuthority(t *testing.T) {
	env := newTestEnv(t, 9, 9)
	escrow := env.provision(1_000)

	_, err := env.engine.Fund(context.Background(), env.oldMint, env.newMint, testPubkey("impostor"), 500)
	if !errors.Is(err, ErrAuthorityMismatch) {
		t.Fatalf("expected ErrAuthorityMismatch, got %v", err)
	}
	if got := env.balance(escrow); got != 1_000 {
		t.Errorf("failed top-up changed escrow balance to %d", got)
	}
}
