// Completion: 100% - ARM-style register file description complete
package legalize

// The 32-bit ARM float register file is the interesting case for the
// aliasing model: S registers are single units, D registers cover two
// adjacent units, Q registers four, so writing d1 clobbers s2 and s3.
// This target only contributes its register description; it exists to
// exercise the parts of the register model a flat file like RISC-V's
// never touches.

var (
	armS = &RegClass{
		Name:       "S",
		Index:      0,
		Width:      1,
		Bank:       0,
		TopRC:      0,
		First:      0,
		Subclasses: 0x1,
		Mask:       [3]uint32{0xffffffff, 0xffffffff, 0},
	}
	armD = &RegClass{
		Name:       "D",
		Index:      1,
		Width:      2,
		Bank:       0,
		TopRC:      1,
		First:      0,
		Subclasses: 0x2,
		Mask:       [3]uint32{0x55555555, 0x55555555, 0},
	}
	armQ = &RegClass{
		Name:       "Q",
		Index:      2,
		Width:      4,
		Bank:       0,
		TopRC:      2,
		First:      0,
		Subclasses: 0x4,
		Mask:       [3]uint32{0x11111111, 0x11111111, 0},
	}
	armGPR = &RegClass{
		Name:       "GPR",
		Index:      3,
		Width:      1,
		Bank:       1,
		TopRC:      3,
		First:      64,
		Subclasses: 0x8,
		Mask:       [3]uint32{0, 0, 0x0000ffff},
	}
	armFlag = &RegClass{
		Name:       "FLAG",
		Index:      4,
		Width:      1,
		Bank:       2,
		TopRC:      4,
		First:      80,
		Subclasses: 0x10,
		Mask:       [3]uint32{0, 0, 0x00010000},
	}

	// Arm32RegInfo describes the 32-bit ARM register file.
	Arm32RegInfo = &RegInfo{
		Banks: []RegBank{
			{
				Name:             "FloatRegs",
				FirstUnit:        0,
				Units:            64,
				Prefix:           "s",
				FirstTopRC:       0,
				NumTopRCs:        3,
				PressureTracking: true,
			},
			{
				Name:             "IntRegs",
				FirstUnit:        64,
				Units:            16,
				Prefix:           "r",
				FirstTopRC:       3,
				NumTopRCs:        1,
				PressureTracking: true,
			},
			{
				Name:       "FlagRegs",
				FirstUnit:  80,
				Units:      1,
				Names:      []string{"nzcv"},
				FirstTopRC: 4,
				NumTopRCs:  1,
			},
		},
		Classes: []*RegClass{armS, armD, armQ, armGPR, armFlag},
	}
)
