package fixed

import "testing"

func TestFromIntToFloat64(t *testing.T) {
	cases := []int32{0, 1, -1, 42, -1000}
	for _, v := range cases {
		q := FromInt(v)
		if got := ToFloat64(q); got != float64(v) {
			t.Errorf("FromInt(%d) -> ToFloat64 = %v, want %v", v, got, v)
		}
	}
}

func TestMulDiv(t *testing.T) {
	a := FromFloat64(2.5)
	b := FromFloat64(4.0)
	got := ToFloat64(Mul(a, b))
	if diff := got - 10.0; diff < -0.001 || diff > 0.001 {
		t.Fatalf("Mul(2.5, 4.0) = %v, want ~10.0", got)
	}
	got = ToFloat64(Div(a, b))
	if diff := got - 0.625; diff < -0.001 || diff > 0.001 {
		t.Fatalf("Div(2.5, 4.0) = %v, want ~0.625", got)
	}
}

func TestSqrtDeterministic(t *testing.T) {
	q := FromInt(2)
	got1 := Sqrt(q)
	got2 := Sqrt(q)
	if got1 != got2 {
		t.Fatalf("Sqrt not deterministic across calls: %d vs %d", got1, got2)
	}
	f := ToFloat64(got1)
	if diff := f - 1.41421356; diff < -0.01 || diff > 0.01 {
		t.Fatalf("Sqrt(2) = %v, want ~1.41421356", f)
	}
}

func TestSqrtZeroAndNegative(t *testing.T) {
	if Sqrt(0) != 0 {
		t.Fatalf("Sqrt(0) should be 0")
	}
	if Sqrt(FromInt(-4)) != 0 {
		t.Fatalf("Sqrt of negative should be clamped to 0")
	}
}

func TestClampMinMax(t *testing.T) {
	lo, hi := FromInt(0), FromInt(10)
	if Clamp(FromInt(-5), lo, hi) != lo {
		t.Fatal("Clamp below lo should return lo")
	}
	if Clamp(FromInt(15), lo, hi) != hi {
		t.Fatal("Clamp above hi should return hi")
	}
	if Clamp(FromInt(5), lo, hi) != FromInt(5) {
		t.Fatal("Clamp within range should return value")
	}
	if Min(lo, hi) != lo || Max(lo, hi) != hi {
		t.Fatal("Min/Max mismatch")
	}
}

func TestSinCosBounds(t *testing.T) {
	for i := 0; i < 16; i++ {
		angle := Mul(FromInt(int32(i)), Div(twoPi, FromInt(16)))
		s := Sin(angle)
		c := Cos(angle)
		if ToFloat64(s) < -1.05 || ToFloat64(s) > 1.05 {
			t.Fatalf("Sin(%d) out of bounds: %v", i, ToFloat64(s))
		}
		if ToFloat64(c) < -1.05 || ToFloat64(c) > 1.05 {
			t.Fatalf("Cos(%d) out of bounds: %v", i, ToFloat64(c))
		}
	}
}

func TestAtan2Quadrants(t *testing.T) {
	one := FromInt(1)
	negOne := FromInt(-1)
	cases := []struct {
		y, x Q
		name string
	}{
		{one, one, "Q1"},
		{one, negOne, "Q2"},
		{negOne, negOne, "Q3"},
		{negOne, one, "Q4"},
	}
	for _, c := range cases {
		got := Atan2(c.y, c.x)
		f := ToFloat64(got)
		if f < -3.2 || f > 3.2 {
			t.Errorf("%s: Atan2(%v,%v) = %v out of range", c.name, ToFloat64(c.y), ToFloat64(c.x), f)
		}
	}
}
