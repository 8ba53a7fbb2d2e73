package fixed

import "math"

// tableSize is the number of samples across a quarter turn (0..Pi/2).
// Angles are expressed in fixed-point radians; lookups wrap and mirror to
// cover the full circle from a single quarter-turn table.
const tableSize = 1024

var (
	sinTable    [tableSize + 1]Q
	atan2Table  [tableSize + 1]Q // atan(x) for x in [0,1], result in radians fixed-point
	twoPi       = Mul(FromInt(2), piQ())
	halfPi      = Div(piQ(), FromInt(2))
	quarterStep Q
)

func piQ() Q { return FromFloat64(math.Pi) }

func init() {
	quarterStep = Div(halfPi, FromInt(tableSize))
	for i := 0; i <= tableSize; i++ {
		angle := float64(i) * (math.Pi / 2) / float64(tableSize)
		sinTable[i] = FromFloat64(math.Sin(angle))
	}
	for i := 0; i <= tableSize; i++ {
		x := float64(i) / float64(tableSize)
		atan2Table[i] = FromFloat64(math.Atan(x))
	}
}

func normalizeAngle(angle Q) Q {
	for angle < 0 {
		angle += twoPi
	}
	for angle >= twoPi {
		angle -= twoPi
	}
	return angle
}

func lerpTable(table []Q, idxF Q) Q {
	// idxF is a fixed-point index into [0, tableSize] with fractional part.
	idx := int32(idxF) >> Shift
	if idx < 0 {
		idx = 0
	}
	if idx >= tableSize {
		return table[tableSize]
	}
	frac := idxF - FromInt(idx)
	a := table[idx]
	b := table[idx+1]
	return a + Mul(b-a, frac)
}

// Sin returns sin(angle) for angle expressed as fixed-point radians.
func Sin(angle Q) Q {
	a := normalizeAngle(angle)
	quadrant := 0
	for a >= halfPi {
		a -= halfPi
		quadrant++
	}
	idxF := Div(Mul(a, FromInt(tableSize)), halfPi)
	v := lerpTable(sinTable[:], idxF)
	switch quadrant % 4 {
	case 0:
		return v
	case 1:
		return lerpTable(sinTable[:], Div(Mul(halfPi-a, FromInt(tableSize)), halfPi))
	case 2:
		return -v
	default:
		return -lerpTable(sinTable[:], Div(Mul(halfPi-a, FromInt(tableSize)), halfPi))
	}
}

// Cos returns cos(angle) for angle expressed as fixed-point radians.
func Cos(angle Q) Q {
	return Sin(angle + halfPi)
}

// Atan2 returns atan2(y, x) for fixed-point y, x, result in fixed-point
// radians in (-pi, pi].
func Atan2(y, x Q) Q {
	if x == 0 && y == 0 {
		return 0
	}
	absY, absX := Abs(y), Abs(x)
	var base Q
	if absX >= absY {
		if absX == 0 {
			base = 0
		} else {
			ratio := Div(absY, absX)
			idxF := Mul(ratio, FromInt(tableSize))
			base = lerpTable(atan2Table[:], idxF)
		}
	} else {
		ratio := Div(absX, absY)
		idxF := Mul(ratio, FromInt(tableSize))
		base = halfPi - lerpTable(atan2Table[:], idxF)
	}
	switch {
	case x >= 0 && y >= 0:
		return base
	case x < 0 && y >= 0:
		return piQ() - base
	case x < 0 && y < 0:
		return -(piQ() - base)
	default:
		return -base
	}
}
