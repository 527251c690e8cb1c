package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cortexdb/internal/domain"
	"cortexdb/internal/infra/config"
	"cortexdb/internal/security"
)

// SecurityComponents holds the optional security layer: config-secret
// encryption, admin-action audit logging, and passphrase rotation.
type SecurityComponents struct {
	Encryptor       *security.AESContentEncryptor
	AuditLogger     domain.AuditLogger
	FileAuditLogger *security.FileAuditLogger // concrete type, for retention enforcement; nil when audit is disabled
	KeyRotator      *security.KeyRotator
}

// initSecurity wires the encryption, audit, and key rotation layers
// according to cfg.Security, returning a cleanup func that tears them down
// in reverse order.
func initSecurity(cfg *config.Config, log *slog.Logger) (*SecurityComponents, func(), error) {
	comp := &SecurityComponents{}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Security.Encryption.Enabled {
		passphrase := os.Getenv("CORTEXDB_CONFIG_KEY")
		if passphrase != "" {
			enc, err := security.NewAESContentEncryptor(passphrase)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("encryption: %w", err)
			}
			comp.Encryptor = enc
			cleanups = append(cleanups, func() { enc.Zeroize() })
			log.Info("config secret encryption enabled", "algorithm", "AES-256-GCM")
		} else {
			log.Warn("encryption enabled but CORTEXDB_CONFIG_KEY not set, skipping")
		}
	}

	if cfg.Security.Audit.Enabled {
		auditDir := filepath.Dir(cfg.Security.Audit.Path)
		if err := os.MkdirAll(auditDir, 0700); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create audit dir: %w", err)
		}

		fileAudit, err := security.NewFileAuditLogger(cfg.Security.Audit.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("audit logger: %w", err)
		}

		if cfg.Security.Audit.Retention.MaxAge != "" || cfg.Security.Audit.Retention.MaxSize != "" {
			var maxAge time.Duration
			if cfg.Security.Audit.Retention.MaxAge != "" {
				d, err := time.ParseDuration(cfg.Security.Audit.Retention.MaxAge)
				if err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("parse audit retention max_age: %w", err)
				}
				maxAge = d
			}
			var maxSize int64
			if cfg.Security.Audit.Retention.MaxSize != "" {
				s, err := security.ParseRetentionMaxSize(cfg.Security.Audit.Retention.MaxSize)
				if err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("parse audit retention max_size: %w", err)
				}
				maxSize = s
			}
			fileAudit.SetRetention(security.RetentionPolicy{MaxAge: maxAge, MaxSize: maxSize})
		}

		comp.AuditLogger = fileAudit
		comp.FileAuditLogger = fileAudit
		cleanups = append(cleanups, func() { fileAudit.Close() })
		log.Info("audit logging enabled", "path", cfg.Security.Audit.Path)
	}

	if cfg.Security.KeyRotation.Enabled && comp.Encryptor != nil {
		interval := 720 * time.Hour
		if cfg.Security.KeyRotation.Interval != "" {
			d, err := time.ParseDuration(cfg.Security.KeyRotation.Interval)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("parse key rotation interval: %w", err)
			}
			interval = d
		}
		keyStore := security.NewEncryptorKeyStore(comp.Encryptor)
		rotator := security.NewKeyRotator(keyStore, interval, log)
		comp.KeyRotator = rotator
		cleanups = append(cleanups, func() { rotator.Stop() })
		log.Info("key rotation enabled", "interval", interval)
	}

	return comp, cleanup, nil
}
