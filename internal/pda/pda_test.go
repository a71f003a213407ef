package pda

import (
	"errors"
	"strings"
	"testing"

	"solana-bridge/internal/solana"
)

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("bridge"), U64Seed(42)}

	a1, b1, err := FindProgramAddress(seeds, solana.BridgeProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress() error = %v", err)
	}
	a2, b2, err := FindProgramAddress(seeds, solana.BridgeProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress() error = %v", err)
	}

	if a1 != a2 || b1 != b2 {
		t.Errorf("FindProgramAddress not deterministic: %s/%d vs %s/%d", a1, b1, a2, b2)
	}
}

func TestFindProgramAddress_OffCurveAndReproducible(t *testing.T) {
	seeds := [][]byte{[]byte("mint"), []byte("0x0000000000000000000"), []byte("000000000000000000000"), U64Seed(7)}

	addr, bump, err := FindProgramAddress(seeds, solana.BridgeProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress() error = %v", err)
	}
	if IsOnCurve(addr[:]) {
		t.Errorf("derived address %s is on the curve", addr)
	}

	withBump := append(append([][]byte{}, seeds...), []byte{bump})
	again, err := CreateProgramAddress(withBump, solana.BridgeProgramID)
	if err != nil {
		t.Fatalf("CreateProgramAddress() error = %v", err)
	}
	if again != addr {
		t.Errorf("CreateProgramAddress with bump = %s, want %s", again, addr)
	}
}

func TestFindProgramAddress_ProgramIDMatters(t *testing.T) {
	seeds := BridgeSeeds(1)
	a, _, err := FindProgramAddress(seeds, solana.BridgeProgramID)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := FindProgramAddress(seeds, solana.TokenProgramID)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("same seeds under different programs should differ")
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	long := []byte(strings.Repeat("a", MaxSeedLength+1))
	if _, err := CreateProgramAddress([][]byte{long}, solana.BridgeProgramID); !errors.Is(err, ErrMaxSeedLengthExceeded) {
		t.Errorf("long seed error = %v, want ErrMaxSeedLengthExceeded", err)
	}

	many := make([][]byte, MaxSeeds+1)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	if _, err := CreateProgramAddress(many, solana.BridgeProgramID); !errors.Is(err, ErrTooManySeeds) {
		t.Errorf("too many seeds error = %v, want ErrTooManySeeds", err)
	}

	if _, _, err := FindProgramAddress(many[:MaxSeeds], solana.BridgeProgramID); !errors.Is(err, ErrTooManySeeds) {
		t.Errorf("FindProgramAddress with no room for bump error = %v, want ErrTooManySeeds", err)
	}
}

func TestIsOnCurve_RealKey(t *testing.T) {
	kp, err := solana.NewKeypair()
	if err != nil {
		t.Fatal(err)
	}
	key := kp.PublicKey()
	if !IsOnCurve(key[:]) {
		t.Error("ed25519 public key should be on the curve")
	}
	if IsOnCurve([]byte{1, 2, 3}) {
		t.Error("short input should not be on the curve")
	}
}
