package main

import "github.com/ayonic/Solana-Agent-Wallet/cmd"

func main() {
	cmd.Execute()
}
