// Command admintoken mints a bearer token identifying an operator to the ledger API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/service"
)

func main() {
	actor := flag.String("actor", "", "actor id recorded on ledger transactions and audit entries")
	configPath := flag.String("config", os.Getenv("LEDGER_CONFIG"), "config file (defaults to ./config.yaml)")
	expiry := flag.Duration("expiry", 0, "token lifetime (defaults to auth.token_expiry)")
	flag.Parse()

	if *actor == "" {
		fmt.Fprintln(os.Stderr, "usage: admintoken -actor <id> [-expiry 12h] [-config path]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not configured")
		os.Exit(1)
	}

	ttl := cfg.Auth.TokenExpiry
	if *expiry > 0 {
		ttl = *expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.Auth.JWTSecret, ttl, cfg.Auth.Issuer).Generate(*actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
}
