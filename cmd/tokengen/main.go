// Command tokengen issues a bearer token for an account, for local testing
// of the HTTP action endpoint.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "ftledger/internal/jwt_token"
	"ftledger/internal/platform/config"
	id "ftledger/pkg/domain"
)

func main() {
	account := flag.String("account", "", "hex account id the token authenticates")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	caller, err := id.ParseActorID(*account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	svc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	token, err := svc.GenerateAccessToken(caller, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
