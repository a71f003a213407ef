package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"solana-bridge/internal/solana"
)

// Deployment records where a bridge was initialized.
type Deployment struct {
	ProgramID solana.PublicKey `json:"programId"`
	Bridge    solana.PublicKey `json:"bridge"`
	Seed      uint64           `json:"seed,string"`
	Timestamp time.Time        `json:"timestamp"`
}

// WriteDeployment writes d to path as indented JSON.
func WriteDeployment(path string, d *Deployment) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode deployment: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write deployment: %w", err)
	}
	return nil
}

// ReadDeployment reads a deployment record written by WriteDeployment.
func ReadDeployment(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deployment: %w", err)
	}
	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode deployment %s: %w", path, err)
	}
	return &d, nil
}
