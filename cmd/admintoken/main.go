package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/splax/tipline/pkg/config"
	"github.com/splax/tipline/pkg/jwt"
	"github.com/splax/tipline/pkg/logger"
)

// admintoken mints an operator bearer token for the admin API.
func main() {
	subject := flag.String("subject", "operator", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.LoadTiplineConfig()
	log := logger.New("admintoken", slog.LevelInfo)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	token, err := jwt.GenerateToken(*subject, jwt.RoleAdmin, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Error("failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
