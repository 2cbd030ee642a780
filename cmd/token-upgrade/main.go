// token-upgrade: escrow-based token migration tool.
//
// This is the command-line entry point for the token-upgrade protocol:
// it manages mints and token accounts on a local ledger, provisions
// migration escrows, and performs atomic burn-and-release exchanges.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rogaldh/token-upgrade/pkg/accounts"
	"github.com/rogaldh/token-upgrade/pkg/crypto"
	"github.com/rogaldh/token-upgrade/pkg/ledger"
	"github.com/rogaldh/token-upgrade/pkg/metrics"
	"github.com/rogaldh/token-upgrade/pkg/pda"
	"github.com/rogaldh/token-upgrade/pkg/types"
	"github.com/rogaldh/token-upgrade/pkg/upgrade"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
	BuildTime = "unknown"
)

// Config represents the JSON configuration file structure.
type Config struct {
	General GeneralConfig `json:"general"`
	Metrics MetricsConfig `json:"metrics"`
}

// GeneralConfig holds general application settings.
type GeneralConfig struct {
	DataDir   string `json:"data_dir"`
	ProgramID string `json:"program_id"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DataDir:   "./token-upgrade-data",
			ProgramID: types.TokenUpgradeProgramID.String(),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9100",
		},
	}
}

// loadConfig reads the configuration file, falling back to defaults when
// the file does not exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `token-upgrade %s (%s)

Usage: token-upgrade <command> [flags]

Commands:
  create-mint      Create a fungible-token mint
  create-account   Create the associated token account for a wallet
  mint-to          Mint tokens into a token account
  balance          Show the balance of a token account
  create-escrow    Provision the migration escrow for a mint pair
  fund-escrow      Top up an existing escrow
  exchange         Burn old tokens and release new tokens from escrow
  snapshot         Export all accounts to a snapshot file
  restore          Import accounts from a snapshot file
  stats            Show ledger statistics

Run 'token-upgrade <command> -h' for command flags.
`, Version, GitCommit)
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "version", "-version", "--version":
		fmt.Printf("token-upgrade %s (%s)\n", Version, GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		return
	case "help", "-h", "--help":
		usage()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	var err error
	switch command {
	case "create-mint":
		err = cmdCreateMint(ctx, args)
	case "create-account":
		err = cmdCreateAccount(ctx, args)
	case "mint-to":
		err = cmdMintTo(ctx, args)
	case "balance":
		err = cmdBalance(ctx, args)
	case "create-escrow":
		err = cmdCreateEscrow(ctx, args)
	case "fund-escrow":
		err = cmdFundEscrow(ctx, args)
	case "exchange":
		err = cmdExchange(ctx, args)
	case "snapshot":
		err = cmdSnapshot(ctx, args)
	case "restore":
		err = cmdRestore(ctx, args)
	case "stats":
		err = cmdStats(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

// commonFlags registers the flags every command shares.
func commonFlags(fs *flag.FlagSet) (configFile, dataDir *string) {
	configFile = fs.String("config", "./token-upgrade.json", "Path to JSON configuration file")
	dataDir = fs.String("data-dir", "", "Data directory for the accounts database")
	return
}

// openEnv loads the configuration and opens the accounts database.
func openEnv(configFile, dataDir string) (Config, accounts.AccountsDB, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return cfg, nil, err
	}
	if dataDir != "" {
		cfg.General.DataDir = dataDir
	}

	var db accounts.AccountsDB
	if cfg.General.DataDir == ":memory:" {
		db = accounts.NewMemoryDB()
	} else {
		dbPath := cfg.General.DataDir + "/accounts"
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			return cfg, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err = accounts.NewBadgerDB(dbPath)
		if err != nil {
			return cfg, nil, fmt.Errorf("failed to open accounts database: %w", err)
		}
	}
	return cfg, db, nil
}

// newEngine builds the protocol engine for a config.
func newEngine(cfg Config, l *ledger.Ledger, collector *metrics.Collector) (*upgrade.Engine, error) {
	programID, err := types.PubkeyFromBase58(cfg.General.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program_id in config: %w", err)
	}
	return upgrade.NewEngine(l,
		upgrade.WithProgramID(programID),
		upgrade.WithMetrics(collector),
	), nil
}

// resolveKey interprets s as a base58 pubkey or, failing that, as the path
// of a keypair file.
func resolveKey(s string) (types.Pubkey, error) {
	if pk, err := types.PubkeyFromBase58(s); err == nil {
		return pk, nil
	}
	kp, err := crypto.LoadKeypairFile(s)
	if err != nil {
		return types.ZeroPubkey, fmt.Errorf("%q is neither a pubkey nor a keypair file: %w", s, err)
	}
	return kp.Pubkey(), nil
}

// parseSigners splits a comma-separated signer list into pubkeys.
func parseSigners(csv string) ([]types.Pubkey, error) {
	if csv == "" {
		return nil, nil
	}
	var signers []types.Pubkey
	for _, part := range strings.Split(csv, ",") {
		pk, err := resolveKey(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		signers = append(signers, pk)
	}
	return signers, nil
}

func cmdCreateMint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-mint", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	decimals := fs.Uint("decimals", 9, "Number of decimal places")
	authority := fs.String("mint-authority", "", "Mint authority (pubkey or keypair file)")
	token2022 := fs.Bool("token-2022", false, "Create the mint under the token-2022 program")
	outFile := fs.String("out", "", "Write the generated mint keypair to this file")
	fs.Parse(args)

	if *authority == "" {
		return fmt.Errorf("-mint-authority is required")
	}
	authorityPk, err := resolveKey(*authority)
	if err != nil {
		return err
	}

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("failed to generate mint keypair: %w", err)
	}
	mintAddr := kp.Pubkey()
	if *outFile != "" {
		if err := crypto.SaveKeypairFile(kp, *outFile); err != nil {
			return fmt.Errorf("failed to save mint keypair: %w", err)
		}
	}

	_, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	tokenProgram := types.TokenProgramID
	if *token2022 {
		tokenProgram = types.Token2022ProgramID
	}

	l := ledger.New(db)
	err = l.Run(func(t *ledger.Txn) error {
		return t.CreateMint(mintAddr, uint8(*decimals), authorityPk, nil, tokenProgram)
	})
	if err != nil {
		return err
	}

	log.Printf("Created mint %s (decimals=%d, program=%s)", mintAddr, *decimals, tokenProgram)
	fmt.Println(mintAddr)
	return nil
}

func cmdCreateAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-account", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	mint := fs.String("mint", "", "Mint the account will hold")
	owner := fs.String("owner", "", "Account owner (pubkey or keypair file)")
	fs.Parse(args)

	if *mint == "" || *owner == "" {
		return fmt.Errorf("-mint and -owner are required")
	}
	mintPk, err := resolveKey(*mint)
	if err != nil {
		return err
	}
	ownerPk, err := resolveKey(*owner)
	if err != nil {
		return err
	}

	_, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	l := ledger.New(db)
	var addr types.Pubkey
	err = l.Run(func(t *ledger.Txn) error {
		mintAccount, err := t.GetAccount(mintPk)
		if err != nil {
			return err
		}
		if mintAccount == nil {
			return fmt.Errorf("mint %s does not exist", mintPk)
		}
		derived, _, ok := pda.DeriveAssociatedTokenAddress(ownerPk, mintPk, mintAccount.Owner)
		if !ok {
			return fmt.Errorf("no associated token address for owner %s", ownerPk)
		}
		addr = derived
		return t.CreateTokenAccount(addr, mintPk, ownerPk)
	})
	if err != nil {
		return err
	}

	log.Printf("Created token account %s (mint=%s, owner=%s)", addr, mintPk, ownerPk)
	fmt.Println(addr)
	return nil
}

func cmdMintTo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mint-to", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	mint := fs.String("mint", "", "Mint to draw from")
	dest := fs.String("dest", "", "Destination token account")
	authority := fs.String("mint-authority", "", "Mint authority (pubkey or keypair file)")
	amount := fs.Uint64("amount", 0, "Amount in base units")
	fs.Parse(args)

	if *mint == "" || *dest == "" || *authority == "" {
		return fmt.Errorf("-mint, -dest and -mint-authority are required")
	}
	mintPk, err := resolveKey(*mint)
	if err != nil {
		return err
	}
	destPk, err := resolveKey(*dest)
	if err != nil {
		return err
	}
	authorityPk, err := resolveKey(*authority)
	if err != nil {
		return err
	}

	_, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	l := ledger.New(db)
	err = l.Run(func(t *ledger.Txn) error {
		return t.MintTo(mintPk, destPk, ledger.SignedBy(authorityPk), *amount)
	})
	if err != nil {
		return err
	}

	log.Printf("Minted %d base units of %s into %s", *amount, mintPk, destPk)
	return nil
}

func cmdBalance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	account := fs.String("account", "", "Token account to query")
	fs.Parse(args)

	if *account == "" {
		return fmt.Errorf("-account is required")
	}
	accountPk, err := resolveKey(*account)
	if err != nil {
		return err
	}

	_, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	l := ledger.New(db)
	state, err := l.TokenAccount(accountPk)
	if err != nil {
		return err
	}

	fmt.Printf("account:  %s\n", accountPk)
	fmt.Printf("mint:     %s\n", state.Mint)
	fmt.Printf("owner:    %s\n", state.Owner)
	fmt.Printf("balance:  %d\n", state.Amount)
	if state.Delegate.IsSome {
		fmt.Printf("delegate: %s (%d)\n", state.Delegate.Value, state.DelegatedAmount)
	}
	return nil
}

func cmdCreateEscrow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-escrow", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	oldMint := fs.String("old-mint", "", "Mint being retired")
	newMint := fs.String("new-mint", "", "Successor mint")
	authority := fs.String("funding-authority", "", "New mint's mint authority (pubkey or keypair file)")
	amount := fs.Uint64("amount", 0, "New-token base units to mint into the escrow")
	fs.Parse(args)

	if *oldMint == "" || *newMint == "" {
		return fmt.Errorf("-old-mint and -new-mint are required")
	}
	oldPk, err := resolveKey(*oldMint)
	if err != nil {
		return err
	}
	newPk, err := resolveKey(*newMint)
	if err != nil {
		return err
	}
	var authorityPk types.Pubkey
	if *authority != "" {
		authorityPk, err = resolveKey(*authority)
		if err != nil {
			return err
		}
	}

	cfg, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := newEngine(cfg, ledger.New(db), metrics.NewCollector())
	if err != nil {
		return err
	}

	escrowAuthority, err := engine.EscrowAuthority(oldPk, newPk)
	if err != nil {
		return err
	}

	escrowAddr, err := engine.Provision(ctx, oldPk, newPk, authorityPk, *amount)
	if err != nil {
		if errors.Is(err, upgrade.ErrAlreadyProvisioned) {
			log.Printf("Escrow already provisioned at %s", escrowAddr)
			fmt.Println(escrowAddr)
			return nil
		}
		return err
	}

	log.Printf("Provisioned escrow %s (authority=%s, bump=%d, funded=%d)",
		escrowAddr, escrowAuthority.Address, escrowAuthority.Bump, *amount)
	fmt.Println(escrowAddr)
	return nil
}

func cmdFundEscrow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fund-escrow", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	oldMint := fs.String("old-mint", "", "Mint being retired")
	newMint := fs.String("new-mint", "", "Successor mint")
	authority := fs.String("funding-authority", "", "New mint's mint authority (pubkey or keypair file)")
	amount := fs.Uint64("amount", 0, "New-token base units to mint into the escrow")
	fs.Parse(args)

	if *oldMint == "" || *newMint == "" || *authority == "" {
		return fmt.Errorf("-old-mint, -new-mint and -funding-authority are required")
	}
	oldPk, err := resolveKey(*oldMint)
	if err != nil {
		return err
	}
	newPk, err := resolveKey(*newMint)
	if err != nil {
		return err
	}
	authorityPk, err := resolveKey(*authority)
	if err != nil {
		return err
	}

	cfg, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := newEngine(cfg, ledger.New(db), metrics.NewCollector())
	if err != nil {
		return err
	}

	escrowAddr, err := engine.Fund(ctx, oldPk, newPk, authorityPk, *amount)
	if err != nil {
		return err
	}

	log.Printf("Funded escrow %s with %d base units", escrowAddr, *amount)
	return nil
}

func cmdExchange(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("exchange", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	oldAccount := fs.String("old-account", "", "Holder's old-mint token account")
	oldMint := fs.String("old-mint", "", "Mint being retired")
	newMint := fs.String("new-mint", "", "Successor mint")
	escrow := fs.String("escrow", "", "Escrow token account (default: derived)")
	dest := fs.String("dest", "", "Destination new-mint token account")
	authority := fs.String("authority", "", "Owner or delegate of the old account (pubkey or keypair file)")
	signers := fs.String("signers", "", "Comma-separated signer set for multisig owners")
	amount := fs.Uint64("amount", 0, "Old-token base units to exchange")
	viaIntermediary := fs.Bool("via-intermediary", false, "Route through a throwaway account")
	showMetrics := fs.Bool("show-metrics", false, "Print metrics after the exchange")
	fs.Parse(args)

	if *oldAccount == "" || *oldMint == "" || *newMint == "" || *dest == "" || *authority == "" {
		return fmt.Errorf("-old-account, -old-mint, -new-mint, -dest and -authority are required")
	}
	oldAccountPk, err := resolveKey(*oldAccount)
	if err != nil {
		return err
	}
	oldPk, err := resolveKey(*oldMint)
	if err != nil {
		return err
	}
	newPk, err := resolveKey(*newMint)
	if err != nil {
		return err
	}
	destPk, err := resolveKey(*dest)
	if err != nil {
		return err
	}
	authorityPk, err := resolveKey(*authority)
	if err != nil {
		return err
	}
	signerSet, err := parseSigners(*signers)
	if err != nil {
		return err
	}

	cfg, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.NewCollector()
	engine, err := newEngine(cfg, ledger.New(db), collector)
	if err != nil {
		return err
	}

	escrowPk := types.ZeroPubkey
	if *escrow != "" {
		escrowPk, err = resolveKey(*escrow)
		if err != nil {
			return err
		}
	} else {
		escrowPk, err = engine.EscrowAddress(oldPk, newPk)
		if err != nil {
			return err
		}
	}

	req := upgrade.ExchangeRequest{
		OldAccount:  oldAccountPk,
		OldMint:     oldPk,
		Escrow:      escrowPk,
		Destination: destPk,
		NewMint:     newPk,
		Authority:   authorityPk,
		Signers:     signerSet,
		Amount:      *amount,
	}

	var receipt *upgrade.Receipt
	if *viaIntermediary {
		receipt, err = engine.ExchangeViaIntermediary(ctx, req)
	} else {
		receipt, err = engine.Exchange(ctx, req)
	}
	if err != nil {
		return err
	}

	log.Printf("Exchanged %d old units for %d new units (receipt %s)",
		receipt.Burned, receipt.Released, receipt.ID)
	fmt.Printf("receipt:  %s\n", receipt.ID)
	fmt.Printf("burned:   %d from %s\n", receipt.Burned, receipt.Source)
	fmt.Printf("released: %d to %s\n", receipt.Released, receipt.Destination)
	if *showMetrics {
		fmt.Print(collector.Render())
	}
	return nil
}

func cmdSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	out := fs.String("out", "", "Snapshot output file")
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}

	_, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := accounts.ExportSnapshot(db, *out); err != nil {
		return err
	}
	log.Printf("Exported snapshot to %s", *out)
	return nil
}

func cmdRestore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	in := fs.String("in", "", "Snapshot input file")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	_, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := accounts.ImportSnapshot(db, *in)
	if err != nil {
		return err
	}
	log.Printf("Imported %d accounts from %s", count, *in)
	return nil
}

func cmdStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	metricsAddr := fs.String("metrics-addr", "", "Serve /metrics at this address until interrupted")
	fs.Parse(args)

	cfg, db, err := openEnv(*configFile, *dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	count := db.GetAccountsCount()
	stateHash, err := accounts.ComputeStateHash(db)
	if err != nil {
		return err
	}

	fmt.Printf("accounts:   %d\n", count)
	fmt.Printf("state hash: %s\n", stateHash)
	fmt.Printf("data dir:   %s\n", cfg.General.DataDir)

	if *metricsAddr != "" {
		collector := metrics.NewCollector()
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		server := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		log.Printf("Serving metrics on %s/metrics", *metricsAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
	}
	return nil
}
