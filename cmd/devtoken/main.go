package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/autovoyage/service-rental/internal/config"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/google/uuid"
)

func main() {
	email := flag.String("email", "renter@example.com", "Email address")
	name := flag.String("name", "", "Display name")
	uid := flag.String("uid", "", "User ID (random when empty)")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.AuthConfig.DevSecret == "" {
		fmt.Fprintln(os.Stderr, "RENTAL_AUTH_DEV_SECRET is not set")
		os.Exit(1)
	}

	if *uid == "" {
		*uid = uuid.NewString()
	}

	verifier := auth.NewHMACVerifier(cfg.AuthConfig.DevSecret)
	token, err := verifier.Issue(auth.Identity{UID: *uid, Email: *email, DisplayName: *name}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "\ncurl -H 'Authorization: Bearer %s' http://localhost%s/bookings\n", token, cfg.Port)
}
