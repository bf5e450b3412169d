package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/logger"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/service"
	"golang.org/x/term"
)

// issue-token signs an identity token for local development and e2e runs.
func main() {
	var (
		subject      string
		role         string
		ttl          time.Duration
		promptSecret bool
	)
	flag.StringVar(&subject, "subject", "", "Subject id (required)")
	flag.StringVar(&role, "role", string(model.RoleStudent), "Role: admin, teacher or student")
	flag.DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	flag.BoolVar(&promptSecret, "prompt-secret", false, "Read ACCESS_TOKEN_SECRET from the terminal instead of the environment")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -subject is required")
		flag.PrintDefaults()
		os.Exit(2)
	}
	r := model.Role(role)
	if !r.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", role)
		os.Exit(2)
	}

	if promptSecret {
		fmt.Fprint(os.Stderr, "Access token secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read secret")
		}
		if len(secret) == 0 {
			fmt.Fprintln(os.Stderr, "Error: secret is empty")
			os.Exit(2)
		}
		cfg.AccessTokenSecret = string(secret)
	}

	token, err := service.NewTokenService(cfg).IssueIdentity(subject, r, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Debug().Str("subject", subject).Str("role", role).Dur("ttl", ttl).Msg("Token issued")
	fmt.Println(token)
}
