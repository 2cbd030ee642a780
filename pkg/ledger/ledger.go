// Package ledger implements the fungible-token ledger the upgrade protocol
// runs against: mints, token accounts, multisig owners and the standard
// mint/transfer/burn/approve operations, backed by an accounts.AccountsDB.
//
// All state mutation happens inside a transaction (Run). A transaction
// stages writes against an overlay and commits them under the ledger's
// single writer lock, so any sequence of operations inside one Run call is
// applied entirely or not at all, and concurrent transactions touching the
// same accounts serialize.
package ledger

import (
	"fmt"
	"sync"

	"github.com/rogaldh/token-upgrade/pkg/accounts"
	"github.com/rogaldh/token-upgrade/pkg/token"
	"github.com/rogaldh/token-upgrade/pkg/types"
)

// Rent-exempt balances for the fixed-size token state accounts.
const (
	mintRentLamports         types.Lamports = 1_461_600
	tokenAccountRentLamports types.Lamports = 2_039_280
	multisigRentLamports     types.Lamports = 3_361_680
)

// Ledger provides serialized, transactional access to token state.
type Ledger struct {
	mu sync.RWMutex
	db accounts.AccountsDB
}

// New creates a ledger over the given account store.
func New(db accounts.AccountsDB) *Ledger {
	return &Ledger{db: db}
}

// Txn is an in-flight ledger transaction. Reads see staged writes; nothing
// reaches the underlying store until the transaction function returns nil.
type Txn struct {
	ledger *Ledger
	staged map[types.Pubkey]*types.Account
	dead   map[types.Pubkey]bool
}

// Run executes fn inside a transaction. If fn returns an error, no staged
// write is applied and the error is returned unchanged.
func (l *Ledger) Run(fn func(*Txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn := &Txn{
		ledger: l,
		staged: make(map[types.Pubkey]*types.Account),
		dead:   make(map[types.Pubkey]bool),
	}

	if err := fn(txn); err != nil {
		return err
	}
	return txn.commit()
}

// commit flushes staged writes to the underlying store.
func (t *Txn) commit() error {
	for pubkey := range t.dead {
		if err := t.ledger.db.DeleteAccount(pubkey); err != nil {
			return fmt.Errorf("failed to delete account %s: %w", pubkey, err)
		}
	}
	for pubkey, account := range t.staged {
		if err := t.ledger.db.SetAccount(pubkey, account); err != nil {
			return fmt.Errorf("failed to store account %s: %w", pubkey, err)
		}
	}
	return nil
}

// GetAccount reads an account through the transaction overlay.
// Returns nil, nil if the account does not exist.
func (t *Txn) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	if t.dead[pubkey] {
		return nil, nil
	}
	if account, ok := t.staged[pubkey]; ok {
		return account.Clone(), nil
	}
	return t.ledger.db.GetAccount(pubkey)
}

// SetAccount stages an account write.
func (t *Txn) SetAccount(pubkey types.Pubkey, account *types.Account) {
	delete(t.dead, pubkey)
	t.staged[pubkey] = account.Clone()
}

// DeleteAccount stages an account deletion.
func (t *Txn) DeleteAccount(pubkey types.Pubkey) {
	delete(t.staged, pubkey)
	t.dead[pubkey] = true
}

// CreateMint creates a mint account at addr under the given token program.
func (t *Txn) CreateMint(addr types.Pubkey, decimals uint8, mintAuthority types.Pubkey, freezeAuthority *types.Pubkey, tokenProgram types.Pubkey) error {
	if !tokenProgram.IsTokenProgram() {
		return fmt.Errorf("%w: %s", ErrUnknownTokenProgram, tokenProgram)
	}

	existing, err := t.GetAccount(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	mint := token.NewMint(decimals, &mintAuthority, freezeAuthority)
	t.SetAccount(addr, types.NewAccountWithData(mintRentLamports, mint.Serialize(), tokenProgram))
	return nil
}

// CreateTokenAccount creates a token account at addr holding mint, owned by
// owner. The account is stored under the same token program as the mint.
func (t *Txn) CreateTokenAccount(addr, mint, owner types.Pubkey) error {
	_, mintAccount, err := t.loadMint(mint)
	if err != nil {
		return err
	}

	existing, err := t.GetAccount(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	state := token.NewTokenAccount(mint, owner)
	t.SetAccount(addr, types.NewAccountWithData(tokenAccountRentLamports, state.Serialize(), mintAccount.Owner))
	return nil
}

// CreateMultisig creates an N-of-M multisig account at addr.
func (t *Txn) CreateMultisig(addr types.Pubkey, m uint8, signers []types.Pubkey, tokenProgram types.Pubkey) error {
	if !tokenProgram.IsTokenProgram() {
		return fmt.Errorf("%w: %s", ErrUnknownTokenProgram, tokenProgram)
	}

	existing, err := t.GetAccount(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	ms, err := token.NewMultisig(m, signers)
	if err != nil {
		return err
	}
	t.SetAccount(addr, types.NewAccountWithData(multisigRentLamports, ms.Serialize(), tokenProgram))
	return nil
}

// MintTo mints amount new tokens into dest. auth must prove the mint
// authority.
func (t *Txn) MintTo(mint, dest types.Pubkey, auth Authorization, amount uint64) error {
	mintState, mintAccount, err := t.loadMint(mint)
	if err != nil {
		return err
	}
	destState, destAccount, err := t.loadTokenAccount(dest)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if destState.Mint != mint {
		return fmt.Errorf("%w: destination holds %s", token.ErrMintMismatch, destState.Mint)
	}
	if destState.IsFrozen() {
		return fmt.Errorf("destination: %w", token.ErrAccountFrozen)
	}

	if !mintState.MintAuthority.IsSome {
		return token.ErrFixedSupply
	}
	if err := t.validateAuthority(mintState.MintAuthority.Value, auth); err != nil {
		return err
	}

	if mintState.Supply > ^uint64(0)-amount {
		return token.ErrOverflow
	}
	if destState.Amount > ^uint64(0)-amount {
		return token.ErrOverflow
	}

	mintState.Supply += amount
	destState.Amount += amount

	t.storeTokenState(mint, mintAccount, mintState.Serialize())
	t.storeTokenState(dest, destAccount, destState.Serialize())
	return nil
}

// Burn destroys amount tokens held by source, shrinking the mint supply.
// auth must prove the account owner or an approved delegate.
func (t *Txn) Burn(source, mint types.Pubkey, auth Authorization, amount uint64) error {
	sourceState, sourceAccount, err := t.loadTokenAccount(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	mintState, mintAccount, err := t.loadMint(mint)
	if err != nil {
		return err
	}

	if sourceState.Mint != mint {
		return fmt.Errorf("%w: source holds %s", token.ErrMintMismatch, sourceState.Mint)
	}
	if sourceState.IsFrozen() {
		return fmt.Errorf("source: %w", token.ErrAccountFrozen)
	}

	available, err := t.checkOwnerOrDelegate(sourceState, auth)
	if err != nil {
		return err
	}
	if amount > available {
		return token.ErrInsufficientFunds
	}

	sourceState.Amount -= amount
	mintState.Supply -= amount
	if sourceState.Delegate.IsSome && sourceState.Delegate.Value == auth.Authority {
		sourceState.DelegatedAmount -= amount
	}

	t.storeTokenState(source, sourceAccount, sourceState.Serialize())
	t.storeTokenState(mint, mintAccount, mintState.Serialize())
	return nil
}

// Transfer moves amount tokens between accounts of the same mint. auth must
// prove the source owner or an approved delegate.
func (t *Txn) Transfer(source, dest types.Pubkey, auth Authorization, amount uint64) error {
	sourceState, sourceAccount, err := t.loadTokenAccount(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	destState, destAccount, err := t.loadTokenAccount(dest)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if sourceState.Mint != destState.Mint {
		return fmt.Errorf("%w: source holds %s, destination holds %s",
			token.ErrMintMismatch, sourceState.Mint, destState.Mint)
	}
	if sourceState.IsFrozen() {
		return fmt.Errorf("source: %w", token.ErrAccountFrozen)
	}
	if destState.IsFrozen() {
		return fmt.Errorf("destination: %w", token.ErrAccountFrozen)
	}

	available, err := t.checkOwnerOrDelegate(sourceState, auth)
	if err != nil {
		return err
	}
	if amount > available {
		return token.ErrInsufficientFunds
	}
	if source == dest {
		// Self-transfer is a validated no-op, as in SPL token. Staging
		// both copies would let the destination write win and inflate
		// the balance.
		return nil
	}
	if destState.Amount > ^uint64(0)-amount {
		return token.ErrOverflow
	}

	sourceState.Amount -= amount
	destState.Amount += amount
	if sourceState.Delegate.IsSome && sourceState.Delegate.Value == auth.Authority {
		sourceState.DelegatedAmount -= amount
	}

	t.storeTokenState(source, sourceAccount, sourceState.Serialize())
	t.storeTokenState(dest, destAccount, destState.Serialize())
	return nil
}

// Approve grants delegate the right to move up to amount tokens from
// source. auth must prove the account owner.
func (t *Txn) Approve(source, delegate types.Pubkey, auth Authorization, amount uint64) error {
	sourceState, sourceAccount, err := t.loadTokenAccount(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := t.validateAuthority(sourceState.Owner, auth); err != nil {
		return err
	}

	sourceState.Delegate = token.COption{IsSome: true, Value: delegate}
	sourceState.DelegatedAmount = amount

	t.storeTokenState(source, sourceAccount, sourceState.Serialize())
	return nil
}

// Revoke clears any delegation on source. auth must prove the account owner.
func (t *Txn) Revoke(source types.Pubkey, auth Authorization) error {
	sourceState, sourceAccount, err := t.loadTokenAccount(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := t.validateAuthority(sourceState.Owner, auth); err != nil {
		return err
	}

	sourceState.Delegate = token.COption{}
	sourceState.DelegatedAmount = 0

	t.storeTokenState(source, sourceAccount, sourceState.Serialize())
	return nil
}

// CloseAccount deletes an empty token account and credits its lamports to
// dest. auth must prove the account owner or close authority.
func (t *Txn) CloseAccount(addr, dest types.Pubkey, auth Authorization) error {
	state, account, err := t.loadTokenAccount(addr)
	if err != nil {
		return err
	}
	if state.Amount != 0 {
		return token.ErrAccountHasBalance
	}

	closeAuthority := state.Owner
	if state.CloseAuthority.IsSome {
		closeAuthority = state.CloseAuthority.Value
	}
	if err := t.validateAuthority(closeAuthority, auth); err != nil {
		return err
	}

	destAccount, err := t.GetAccount(dest)
	if err != nil {
		return err
	}
	if destAccount == nil {
		return fmt.Errorf("destination: %w", ErrAccountNotFound)
	}

	destAccount.Lamports += account.Lamports
	t.SetAccount(dest, destAccount)
	t.DeleteAccount(addr)
	return nil
}

// checkOwnerOrDelegate verifies auth against the source owner or delegate
// and returns the balance available to the acting authority.
func (t *Txn) checkOwnerOrDelegate(state *token.TokenAccount, auth Authorization) (uint64, error) {
	isOwner := auth.Authority == state.Owner
	isDelegate := state.Delegate.IsSome && state.Delegate.Value == auth.Authority

	if !isOwner && !isDelegate {
		return 0, fmt.Errorf("%w: %s is neither owner nor delegate",
			token.ErrOwnerMismatch, auth.Authority)
	}
	if err := t.validateAuthority(auth.Authority, auth); err != nil {
		return 0, err
	}

	if isOwner {
		return state.Amount, nil
	}
	if state.DelegatedAmount < state.Amount {
		return state.DelegatedAmount, nil
	}
	return state.Amount, nil
}

// loadMint reads and parses a mint account.
func (t *Txn) loadMint(addr types.Pubkey) (*token.Mint, *types.Account, error) {
	account, err := t.GetAccount(addr)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, fmt.Errorf("%w: mint %s", ErrAccountNotFound, addr)
	}
	if !account.Owner.IsTokenProgram() {
		return nil, nil, fmt.Errorf("%w: mint %s owned by %s", token.ErrInvalidAccountOwner, addr, account.Owner)
	}
	mint, err := token.DeserializeMint(account.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("mint %s: %w", addr, err)
	}
	if !mint.IsInitialized {
		return nil, nil, fmt.Errorf("mint %s: %w", addr, token.ErrNotInitialized)
	}
	return mint, account, nil
}

// loadTokenAccount reads and parses a token account.
func (t *Txn) loadTokenAccount(addr types.Pubkey) (*token.TokenAccount, *types.Account, error) {
	account, err := t.GetAccount(addr)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if !account.Owner.IsTokenProgram() {
		return nil, nil, fmt.Errorf("%w: %s owned by %s", token.ErrInvalidAccountOwner, addr, account.Owner)
	}
	state, err := token.DeserializeTokenAccount(account.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", addr, err)
	}
	if state.State == token.AccountStateUninitialized {
		return nil, nil, fmt.Errorf("%s: %w", addr, token.ErrNotInitialized)
	}
	return state, account, nil
}

// TokenAccount returns the parsed token account at addr through the
// transaction overlay.
func (t *Txn) TokenAccount(addr types.Pubkey) (*token.TokenAccount, error) {
	state, _, err := t.loadTokenAccount(addr)
	return state, err
}

// Mint returns the parsed mint at addr through the transaction overlay.
func (t *Txn) Mint(addr types.Pubkey) (*token.Mint, error) {
	state, _, err := t.loadMint(addr)
	return state, err
}

// VerifyOwnerOrDelegate checks that auth proves the owner or an approved
// delegate of the token account at addr, without mutating anything, and
// returns the balance available to the acting authority.
func (t *Txn) VerifyOwnerOrDelegate(addr types.Pubkey, auth Authorization) (uint64, error) {
	state, _, err := t.loadTokenAccount(addr)
	if err != nil {
		return 0, err
	}
	return t.checkOwnerOrDelegate(state, auth)
}

// storeTokenState writes updated token state back into an account.
func (t *Txn) storeTokenState(addr types.Pubkey, account *types.Account, data []byte) {
	account.Data = data
	t.SetAccount(addr, account)
}

// Balance returns the token balance of a token account.
func (l *Ledger) Balance(addr types.Pubkey) (uint64, error) {
	state, err := l.TokenAccount(addr)
	if err != nil {
		return 0, err
	}
	return state.Amount, nil
}

// Delegation returns the delegate and delegated amount of a token account.
// The delegate is the zero pubkey when no delegation is set.
func (l *Ledger) Delegation(addr types.Pubkey) (types.Pubkey, uint64, error) {
	state, err := l.TokenAccount(addr)
	if err != nil {
		return types.ZeroPubkey, 0, err
	}
	if !state.Delegate.IsSome {
		return types.ZeroPubkey, 0, nil
	}
	return state.Delegate.Value, state.DelegatedAmount, nil
}

// TokenAccount returns the parsed state of a token account.
func (l *Ledger) TokenAccount(addr types.Pubkey) (*token.TokenAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var state *token.TokenAccount
	err := l.view(func(t *Txn) error {
		var loadErr error
		state, _, loadErr = t.loadTokenAccount(addr)
		return loadErr
	})
	return state, err
}

// Mint returns the parsed state of a mint account.
func (l *Ledger) Mint(addr types.Pubkey) (*token.Mint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var state *token.Mint
	err := l.view(func(t *Txn) error {
		var loadErr error
		state, _, loadErr = t.loadMint(addr)
		return loadErr
	})
	return state, err
}

// Multisig returns the parsed state of a multisig account, or an error if
// addr does not hold one.
func (l *Ledger) Multisig(addr types.Pubkey) (*token.Multisig, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	account, err := l.db.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return token.DeserializeMultisig(account.Data)
}

// HasAccount reports whether an account exists.
func (l *Ledger) HasAccount(addr types.Pubkey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.db.HasAccount(addr)
}

// view runs fn against a read-only transaction without taking the write
// lock. Callers must hold at least the read lock.
func (l *Ledger) view(fn func(*Txn) error) error {
	txn := &Txn{
		ledger: l,
		staged: make(map[types.Pubkey]*types.Account),
		dead:   make(map[types.Pubkey]bool),
	}
	return fn(txn)
}
