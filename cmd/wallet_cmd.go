package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/ayonic/Solana-Agent-Wallet/internal/config"
	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage agent wallets: create, list, transfer, fund",
	}
	cmd.AddCommand(walletCreateCmd())
	cmd.AddCommand(walletListCmd())
	cmd.AddCommand(walletBalanceCmd())
	cmd.AddCommand(walletTransferCmd())
	cmd.AddCommand(walletFundCmd())
	cmd.AddCommand(walletHistoryCmd())
	cmd.AddCommand(walletDeleteCmd())
	return cmd
}

// --- wallet create ---

func walletCreateCmd() *cobra.Command {
	var label string
	var fundSOL float64
	cmd := &cobra.Command{
		Use:   "create <agent-id>",
		Short: "Generate and store an encrypted keypair for an agent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runWalletCreate(args[0], label, fundSOL)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "human-readable label")
	cmd.Flags().Float64Var(&fundSOL, "fund", 0, "request a devnet airdrop of this many SOL after creation")
	return cmd
}

func runWalletCreate(agentID, label string, fundSOL float64) {
	cfg := loadConfig()
	_, registry := openRegistry(cfg)

	limits := wallet.Limits{}
	if agentCfg, ok := agentConfigFor(cfg, agentID); ok {
		limits = agentCfg.Limits()
	}

	w, err := registry.Create(agentID, label, limits)
	if err != nil {
		fatalf("create wallet: %v", err)
	}

	pub, _ := w.PublicKey()
	fmt.Printf("Created wallet for %s\n", agentID)
	fmt.Printf("Public key: %s\n", pub)

	if fundSOL > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		sig, err := w.RequestFunding(ctx, config.SolToLamports(fundSOL))
		if err != nil {
			fatalf("funding request: %v", err)
		}
		fmt.Printf("Funded %.4f SOL (%s)\n", fundSOL, sig)
	}
}

// --- wallet list ---

func walletListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all stored wallets",
		Run: func(cmd *cobra.Command, args []string) {
			runWalletList(jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runWalletList(jsonOutput bool) {
	cfg := loadConfig()
	store, _ := openRegistry(cfg)

	metas, err := store.List()
	if err != nil {
		fatalf("list wallets: %v", err)
	}

	if jsonOutput {
		printJSON(metas)
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tPUBLIC KEY\tLABEL\tCREATED")
	for _, m := range metas {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.AgentID, m.PublicKey, m.Label, m.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

// --- wallet balance ---

func walletBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <agent-id>",
		Short: "Query an agent's SOL balance",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runWalletBalance(args[0])
		},
	}
}

func runWalletBalance(agentID string) {
	cfg := loadConfig()
	_, registry := openRegistry(cfg)

	w, err := registry.Load(agentID, wallet.Limits{})
	if err != nil {
		fatalf("load wallet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	balance, err := w.Balance(ctx)
	if err != nil {
		fatalf("balance query: %v", err)
	}
	fmt.Printf("%.9f SOL (%d lamports)\n", config.LamportsToSol(balance), balance)
}

// --- wallet transfer ---

func walletTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <agent-id> <to-pubkey> <sol>",
		Short: "Send SOL from an agent wallet (policy-gated)",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			runWalletTransfer(args[0], args[1], args[2])
		},
	}
}

func runWalletTransfer(agentID, toStr, solStr string) {
	cfg := loadConfig()
	_, registry := openRegistry(cfg)

	to, err := solana.PublicKeyFromBase58(toStr)
	if err != nil {
		fatalf("invalid recipient %q: %v", toStr, err)
	}
	sol, err := strconv.ParseFloat(solStr, 64)
	if err != nil || sol <= 0 {
		fatalf("invalid SOL amount %q", solStr)
	}

	limits := wallet.Limits{}
	if agentCfg, ok := agentConfigFor(cfg, agentID); ok {
		limits = agentCfg.Limits()
	}
	w, err := registry.Load(agentID, limits)
	if err != nil {
		fatalf("load wallet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	sig, err := w.Transfer(ctx, to, config.SolToLamports(sol))
	if err != nil {
		fatalf("transfer: %v", err)
	}
	fmt.Printf("Confirmed: %s\n", sig)
}

// --- wallet fund ---

func walletFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <agent-id> <sol>",
		Short: "Request a devnet airdrop for an agent wallet",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runWalletFund(args[0], args[1])
		},
	}
}

func runWalletFund(agentID, solStr string) {
	cfg := loadConfig()
	_, registry := openRegistry(cfg)

	sol, err := strconv.ParseFloat(solStr, 64)
	if err != nil || sol <= 0 {
		fatalf("invalid SOL amount %q", solStr)
	}

	w, err := registry.Load(agentID, wallet.Limits{})
	if err != nil {
		fatalf("load wallet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	sig, err := w.RequestFunding(ctx, config.SolToLamports(sol))
	if err != nil {
		fatalf("funding request: %v", err)
	}
	fmt.Printf("Confirmed: %s\n", sig)
}

// --- wallet history ---

func walletHistoryCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history <agent-id>",
		Short: "Show an agent's local transaction history",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runWalletHistory(args[0], jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runWalletHistory(agentID string, jsonOutput bool) {
	cfg := loadConfig()
	_, registry := openRegistry(cfg)

	w, err := registry.Load(agentID, wallet.Limits{})
	if err != nil {
		fatalf("load wallet: %v", err)
	}

	history := w.History()
	if jsonOutput {
		printJSON(history)
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tLAMPORTS\tSTATUS\tSIGNATURE")
	for _, rec := range history {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			rec.Time.Format(time.RFC3339), rec.Kind, rec.Lamports, rec.Status, rec.Signature)
	}
	tw.Flush()
}

// --- wallet delete ---

func walletDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Retire an agent: remove its credential (ledger is kept)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runWalletDelete(args[0])
		},
	}
}

func runWalletDelete(agentID string) {
	cfg := loadConfig()
	_, registry := openRegistry(cfg)

	if err := registry.Delete(agentID); err != nil {
		fatalf("delete wallet: %v", err)
	}
	fmt.Printf("Deleted wallet for %s\n", agentID)
}
