package main

import (
	"log"
	"time"

	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/config"
	"tenauth/internal/platform/database"
	"tenauth/internal/platform/repositories"
)

// The sweeper keeps the two append-mostly tables bounded: session revocation
// rows older than the longest session TTL can never match a live token, and
// audit rows age out per the configured retention window.
func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	revocationRepo := repositories.NewSessionRevocationRepository(db)
	auditLog := audit.NewLogger(db)

	maxTTL := cfg.Sessions.AdminTTL
	if cfg.Sessions.UserTTL > maxTTL {
		maxTTL = cfg.Sessions.UserTTL
	}

	log.Println("Starting tenauth sweeper...")

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for ; ; <-ticker.C {
		revocationCutoff := time.Now().Add(-maxTTL).Unix()
		if n, err := revocationRepo.PruneOlderThan(revocationCutoff); err != nil {
			log.Printf("Error pruning session revocations: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d expired session revocations", n)
		}

		auditCutoff := time.Now().AddDate(0, 0, -cfg.Audit.RetentionDays).Unix()
		if n, err := auditLog.PruneOlderThan(auditCutoff); err != nil {
			log.Printf("Error pruning audit logs: %v", err)
		} else if n > 0 {
			log.Printf("Pruned %d audit log entries", n)
		}
	}
}
