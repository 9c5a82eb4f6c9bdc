package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"OmniSpectrum/internal/domain/models"
)

var errDisclaimer = errors.New("disclaimer not accepted or expired, run `omnictl accept` first")

func defaultAckPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "omnispectrum", "disclaimer.json")
}

func loadAck(path string) (models.DisclaimerAck, error) {
	var ack models.DisclaimerAck
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ack, nil
	}
	if err != nil {
		return ack, fmt.Errorf("read disclaimer: %w", err)
	}
	if err := json.Unmarshal(b, &ack); err != nil {
		return models.DisclaimerAck{}, nil
	}
	return ack, nil
}

func saveAck(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	b, err := json.Marshal(models.DisclaimerAck{AcceptedAt: now.UTC()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// requireAck fails unless a disclaimer acceptance younger than two days exists.
// An expired file is removed.
func requireAck(path string, now time.Time) error {
	ack, err := loadAck(path)
	if err != nil {
		return err
	}
	if ack.Valid(now) {
		return nil
	}
	if !ack.AcceptedAt.IsZero() {
		_ = os.Remove(path)
	}
	return errDisclaimer
}
