package codec

import "testing"

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c := Limit[[]int]{Inner: JSON[[]int]{}, MaxDecode: 8}

	small, err := c.Encode([]int{1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(small); err != nil {
		t.Fatalf("Decode small payload: %v", err)
	}

	big, err := c.Encode([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(big) <= 8 {
		t.Fatalf("test payload too small: %d bytes", len(big))
	}
	if _, err := c.Decode(big); err == nil {
		t.Fatal("Decode accepted payload over the limit")
	}
}

func TestLimitDisabledWhenZero(t *testing.T) {
	c := Limit[[]int]{Inner: JSON[[]int]{}}
	b, err := c.Encode([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(b); err != nil {
		t.Fatalf("Decode with no limit: %v", err)
	}
}
