package vcpu

// EFLAGS bit positions this core computes. AF (auxiliary carry) is
// produced for CMP but left undisturbed for TEST, matching the
// architectural "AF undefined" note in spec.md §4.2.
const (
	flagCF = 1 << 0
	flagPF = 1 << 2
	flagAF = 1 << 4
	flagZF = 1 << 6
	flagSF = 1 << 7
	flagOF = 1 << 11

	// flagRF (resume flag, 0x10000) is ORed into EFLAGS on every TEST
	// emulation to match the original's observable behavior. The intent
	// is unclear (possibly suppressing single-step re-entry from the
	// host) — reproduced, not re-derived; see spec.md §9 Open Questions.
	flagRF = 0x10000
)

func widthMask(w regWidth) uint64 {
	switch w {
	case width8:
		return 0xFF
	case width16:
		return 0xFFFF
	case width32:
		return 0xFFFFFFFF
	default:
		return 0xFFFFFFFFFFFFFFFF
	}
}

func signBit(w regWidth) uint64 {
	switch w {
	case width8:
		return 0x80
	case width16:
		return 0x8000
	case width32:
		return 0x80000000
	default:
		return 0x8000000000000000
	}
}

func parityEven(result uint64) bool {
	b := byte(result)
	count := 0
	for b != 0 {
		count += int(b & 1)
		b >>= 1
	}
	return count%2 == 0
}

// subFlags computes the EFLAGS resulting from left-right (width w) as
// CMP does: CF/OF/SF/ZF/AF/PF all derived from the subtraction, per
// spec.md §4.2.
func subFlags(eflags uint64, left, right uint64, w regWidth) uint64 {
	mask := widthMask(w)
	l := left & mask
	r := right & mask
	result := (l - r) & mask

	cf := l < r
	af := (l & 0xF) < (r & 0xF)
	sf := result&signBit(w) != 0
	zf := result == 0
	lsign := l&signBit(w) != 0
	rsign := r&signBit(w) != 0
	of := lsign != rsign && lsign != sf
	pf := parityEven(result)

	eflags &^= flagCF | flagPF | flagAF | flagZF | flagSF | flagOF
	if cf {
		eflags |= flagCF
	}
	if pf {
		eflags |= flagPF
	}
	if af {
		eflags |= flagAF
	}
	if zf {
		eflags |= flagZF
	}
	if sf {
		eflags |= flagSF
	}
	if of {
		eflags |= flagOF
	}
	return eflags
}

// andFlags computes the EFLAGS resulting from left AND right (width w) as
// TEST does: SF/ZF/PF from the result, CF/OF cleared, AF left untouched.
func andFlags(eflags uint64, left, right uint64, w regWidth) uint64 {
	mask := widthMask(w)
	result := (left & mask) & (right & mask)

	sf := result&signBit(w) != 0
	zf := result == 0
	pf := parityEven(result)

	eflags &^= flagCF | flagPF | flagZF | flagSF | flagOF
	if pf {
		eflags |= flagPF
	}
	if zf {
		eflags |= flagZF
	}
	if sf {
		eflags |= flagSF
	}
	return eflags
}

// cmpSourcePtr emulates "CMP [ptr], operand": memory is the left/source
// operand, so left=ptrVal, right=operand.
func cmpSourcePtr(eflags, ptrVal, operand uint64, w regWidth) uint64 {
	return subFlags(eflags, ptrVal, operand, w)
}

// cmpDestPtr emulates "CMP operand, [ptr]": memory is the right operand,
// so left=operand, right=ptrVal.
func cmpDestPtr(eflags, ptrVal, operand uint64, w regWidth) uint64 {
	return subFlags(eflags, operand, ptrVal, w)
}

// testSourcePtr/testDestPtr mirror cmpSourcePtr/cmpDestPtr for TEST. AND
// is commutative so the two only differ in which side is documented as
// "the pointer operand"; both OR flagRF into the result (see flagRF doc).
func testSourcePtr(eflags, ptrVal, operand uint64, w regWidth) uint64 {
	return andFlags(eflags, ptrVal, operand, w) | flagRF
}

func testDestPtr(eflags, ptrVal, operand uint64, w regWidth) uint64 {
	return andFlags(eflags, operand, ptrVal, w) | flagRF
}
