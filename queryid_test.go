package resolvers

import "testing"

func TestXorshiftRNGNeverGetsStuckAtZero(t *testing.T) {
	rng := &xorshiftRNG{state: 0}
	if rng.next() == 0 {
		t.Error("next() must never return 0 from a zero seed; xorshift is undefined at state 0")
	}
}

func TestNextQueryIDAvoidsTakenIDs(t *testing.T) {
	rng := newXorshiftRNG()
	taken := map[uint16]*Resolution{}

	id, err := rng.nextQueryID(taken, 100)
	if err != nil {
		t.Fatalf("nextQueryID: %v", err)
	}
	taken[id] = &Resolution{}

	id2, err := rng.nextQueryID(taken, 100)
	if err != nil {
		t.Fatalf("nextQueryID: %v", err)
	}
	if id2 == id {
		t.Error("nextQueryID returned an id already present in the taken set")
	}
}

func TestNextQueryIDFailsWhenExhausted(t *testing.T) {
	rng := newXorshiftRNG()

	// A stub that claims every id is taken forces every attempt to miss.
	taken := fullQueryIDSpace()

	_, err := rng.nextQueryID(taken, 10)
	if err != ErrNoQueryID {
		t.Errorf("err = %v, want ErrNoQueryID", err)
	}
}

func fullQueryIDSpace() map[uint16]*Resolution {
	m := make(map[uint16]*Resolution, 1<<16)
	for i := 0; i < 1<<16; i++ {
		m[uint16(i)] = &Resolution{}
	}
	return m
}
