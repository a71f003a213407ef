package bridge

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/solana"
)

// Event names, as hashed into their discriminators.
const (
	EventNewRequest  = "NewRequestEvent"
	EventTokenMinted = "TokenMintedEvent"
)

func eventDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("event:" + name))
	return sum[:8]
}

var (
	newRequestDiscriminator  = eventDiscriminator(EventNewRequest)
	tokenMintedDiscriminator = eventDiscriminator(EventTokenMinted)
)

// Event is a decoded program event.
type Event interface {
	EventName() string
	// Correlation returns the request id the event refers to.
	Correlation() string
}

// NewRequestEvent is emitted when a token is locked into escrow.
type NewRequestEvent struct {
	Mint             solana.PublicKey
	UserTokenAccount solana.PublicKey
	RequestID        string
	Amount           uint64
}

func (NewRequestEvent) EventName() string     { return EventNewRequest }
func (e NewRequestEvent) Correlation() string { return e.RequestID }

// Encode returns discriminator || borsh(fields).
func (e NewRequestEvent) Encode() []byte {
	return borsh.NewWriter(128).
		Raw(newRequestDiscriminator).
		PublicKey(e.Mint).
		PublicKey(e.UserTokenAccount).
		String(e.RequestID).
		U64(e.Amount).
		Bytes()
}

// TokenMintedEvent is emitted when a wrapped asset is minted.
type TokenMintedEvent struct {
	Mint                    solana.PublicKey
	DestinationTokenAccount solana.PublicKey
	RequestID               string
}

func (TokenMintedEvent) EventName() string     { return EventTokenMinted }
func (e TokenMintedEvent) Correlation() string { return e.RequestID }

// Encode returns discriminator || borsh(fields).
func (e TokenMintedEvent) Encode() []byte {
	return borsh.NewWriter(128).
		Raw(tokenMintedDiscriminator).
		PublicKey(e.Mint).
		PublicKey(e.DestinationTokenAccount).
		String(e.RequestID).
		Bytes()
}

// DecodeEvent parses one event payload. It returns (nil, nil) for payloads
// whose discriminator is not a known event.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) < 8 {
		return nil, nil
	}
	r := borsh.NewReader(data[8:])
	switch {
	case bytes.Equal(data[:8], newRequestDiscriminator):
		e := NewRequestEvent{
			Mint:             r.PublicKey(),
			UserTokenAccount: r.PublicKey(),
			RequestID:        r.String(),
		}
		if r.Remaining() >= 8 {
			e.Amount = r.U64()
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("decode %s: %w", EventNewRequest, err)
		}
		return e, nil
	case bytes.Equal(data[:8], tokenMintedDiscriminator):
		e := TokenMintedEvent{
			Mint:                    r.PublicKey(),
			DestinationTokenAccount: r.PublicKey(),
			RequestID:               r.String(),
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("decode %s: %w", EventTokenMinted, err)
		}
		return e, nil
	}
	return nil, nil
}

const (
	logDataPrefix = "Program data: "
	logProgram    = "Program "
)

// ParseEvents extracts the events emitted by programID from transaction
// logs. It follows the invoke/success/failed lines to attribute each
// "Program data:" line to the program that was executing, so data logged by
// other programs is ignored.
func ParseEvents(programID solana.PublicKey, logs []string) ([]Event, error) {
	id := programID.String()
	var stack []string
	var events []Event

	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, logDataPrefix):
			if len(stack) == 0 || stack[len(stack)-1] != id {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, logDataPrefix))
			if err != nil {
				return events, fmt.Errorf("decode program data: %w", err)
			}
			ev, err := DecodeEvent(raw)
			if err != nil {
				return events, err
			}
			if ev != nil {
				events = append(events, ev)
			}
		case strings.HasPrefix(line, logProgram):
			fields := strings.Fields(strings.TrimPrefix(line, logProgram))
			if len(fields) < 2 {
				continue
			}
			switch {
			case fields[1] == "invoke":
				stack = append(stack, fields[0])
			case fields[1] == "success" || strings.HasPrefix(fields[1], "failed"):
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return events, nil
}
