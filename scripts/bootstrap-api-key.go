// Command bootstrap-api-key issues the first API key so that key management
// can be done over the API. It creates the owning account when needed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bookmarks/bookmarks/internal/auth"
	"github.com/bookmarks/bookmarks/internal/model"
	"github.com/bookmarks/bookmarks/internal/repository"
	"github.com/bookmarks/bookmarks/internal/seed"
)

type options struct {
	databaseURL string
	username    string
	password    string
	keyName     string
	scopes      []string
	tier        string
	appEnv      string
	format      string
}

type issued struct {
	Username  string   `json:"username"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
	Tier      string   `json:"rate_limit_tier"`
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err == nil {
		err = run(opts, os.Stdout)
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "bootstrap-api-key:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var (
		opts   options
		scopes string
	)
	fs := flag.NewFlagSet("bootstrap-api-key", flag.ContinueOnError)
	fs.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.StringVar(&opts.username, "username", "admin-bot", "account that owns the key; created when missing")
	fs.StringVar(&opts.password, "password", os.Getenv("BOOTSTRAP_PASSWORD"), "password for a new account")
	fs.StringVar(&opts.keyName, "name", "bootstrap", "key name")
	fs.StringVar(&scopes, "scopes", model.ScopeAdmin, "comma separated scopes: "+strings.Join(model.ValidScopes, ","))
	fs.StringVar(&opts.tier, "tier", model.TierUnlimited, "rate limit tier: free, pro or unlimited")
	fs.StringVar(&opts.appEnv, "app-env", os.Getenv("APP_ENV"), "environment; production issues pk_live_ keys")
	fs.StringVar(&opts.format, "format", "plain", "output: plain or json")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.databaseURL == "" {
		return opts, errors.New("DATABASE_URL or -database-url is required")
	}
	if !model.IsValidTier(opts.tier) {
		return opts, fmt.Errorf("unknown tier %q", opts.tier)
	}
	switch opts.format = strings.ToLower(opts.format); opts.format {
	case "plain", "json":
	default:
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}

	var err error
	opts.scopes, err = parseScopes(scopes)
	return opts, err
}

// parseScopes splits a comma separated list. An empty list means admin.
func parseScopes(input string) ([]string, error) {
	var scopes []string
	for _, s := range strings.Split(input, ",") {
		s = strings.TrimSpace(s)
		switch {
		case s == "":
		case !model.IsValidScope(s):
			return nil, fmt.Errorf("unknown scope %q", s)
		default:
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return []string{model.ScopeAdmin}, nil
	}
	return scopes, nil
}

func run(opts options, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	owner, err := ownerAccount(ctx, repo, opts.username, opts.password)
	if err != nil {
		return err
	}

	secret, err := auth.GenerateAPIKey(auth.EnvForAppEnv(opts.appEnv))
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	key := &model.APIKey{
		ID:            ulid.Make().String(),
		AccountID:     owner.ID,
		KeyHash:       secret.Hash,
		KeyPrefix:     secret.Prefix,
		Scopes:        opts.scopes,
		RateLimitTier: opts.tier,
		Name:          opts.keyName,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		return err
	}

	return printIssued(out, opts.format, issued{
		Username:  owner.Username,
		KeyID:     key.ID,
		Key:       secret.Plaintext,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
		Tier:      key.RateLimitTier,
	})
}

func printIssued(out io.Writer, format string, key issued) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(key)
	}
	_, err := fmt.Fprintln(out, key.Key)
	return err
}

// ownerAccount loads username, creating it first when a password is given.
func ownerAccount(ctx context.Context, repo *repository.Repository, username, password string) (*model.Account, error) {
	account, err := repo.FindAccountByUsername(ctx, username)
	switch {
	case err == nil:
		return account, nil
	case !errors.Is(err, repository.ErrAccountNotFound):
		return nil, err
	case password == "":
		return nil, fmt.Errorf("account %q does not exist; set -password or BOOTSTRAP_PASSWORD to create it", username)
	}

	if _, err := seed.EnsureAccount(ctx, repo, username, password, auth.HashPassword); err != nil {
		return nil, err
	}
	return repo.FindAccountByUsername(ctx, username)
}
