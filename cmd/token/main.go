// cmd/token/main.go
//
// token mints a development identity token with the keys configured for the server.
//
//	token -uid alice -email alice@example.com
//	token -keygen ./keys
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jason-s-yu/tambola/internal/auth"
	"github.com/jason-s-yu/tambola/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	uid := flag.String("uid", "", "user id to put in the sub claim")
	email := flag.String("email", "", "optional email claim")
	keygen := flag.String("keygen", "", "write a new id_ed25519 key pair into this directory and exit")
	flag.Parse()

	logger := logrus.New()

	if *keygen != "" {
		if err := writeKeys(*keygen); err != nil {
			logger.Fatalf("keygen: %v", err)
		}
		logger.Infof("wrote key pair to %s", *keygen)
		return
	}

	if *uid == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}
	if cfg.Auth.PrivateKeyPath == "" {
		logger.Fatal("AUTH_PRIVATE_KEY_PATH must be set to mint tokens the server accepts")
	}
	ttl, err := auth.ParseTokenTTL(cfg.Auth.TokenExpireTime)
	if err != nil {
		logger.Fatalf("parsing TOKEN_EXPIRE_TIME: %v", err)
	}
	ta, err := auth.LoadTokenAuthority(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, ttl)
	if err != nil {
		logger.Fatalf("loading keys: %v", err)
	}

	token, err := ta.CreateJWT(auth.Identity{UserID: *uid, Email: *email})
	if err != nil {
		logger.Fatalf("signing token: %v", err)
	}
	fmt.Println(token)
}

func writeKeys(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	ta, err := auth.NewTokenAuthority(0)
	if err != nil {
		return err
	}
	return ta.WriteKeyFiles(filepath.Join(dir, "id_ed25519"), filepath.Join(dir, "id_ed25519.pub"))
}
