package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToggle(t *testing.T) {
	t.Parallel()
	type testCase struct {
		In, Out I
		// Involution is true if toggling twice returns the input
		Involution bool
	}
	tcs := []testCase{
		{In: CpyI{Src: Imm(1), Dst: Reg(A)}, Out: JnzI{Test: Imm(1), Offset: Reg(A)}, Involution: true},
		{In: JnzI{Test: Reg(B), Offset: Imm(-2)}, Out: CpyI{Src: Reg(B), Dst: Imm(-2)}, Involution: true},
		{In: IncI{X: Reg(C)}, Out: DecI{X: Reg(C)}, Involution: true},
		{In: DecI{X: Reg(D)}, Out: IncI{X: Reg(D)}, Involution: true},
		{In: TglI{Offset: Reg(A)}, Out: IncI{X: Reg(A)}},
		{In: OutI{X: Reg(B)}, Out: IncI{X: Reg(B)}},
	}
	for _, tc := range tcs {
		t.Run(tc.In.String(), func(t *testing.T) {
			out := Toggle(tc.In)
			require.Equal(t, tc.Out, out)
			require.Equal(t, tc.In.Op().Arity(), out.Op().Arity())
			require.Equal(t, tc.In.Operands(), out.Operands())
			if tc.Involution {
				require.Equal(t, tc.In, Toggle(out))
			} else {
				require.NotEqual(t, tc.In, Toggle(out))
			}
		})
	}
}

func TestToggleNeverRecovers(t *testing.T) {
	for _, ix := range []I{TglI{Offset: Reg(A)}, OutI{X: Reg(A)}} {
		x := ix
		for i := 0; i < 10; i++ {
			x = Toggle(x)
			require.Contains(t, []Op{Inc, Dec}, x.Op())
		}
	}
}

func TestParseOperand(t *testing.T) {
	t.Parallel()
	type testCase struct {
		I   string
		O   Operand
		Err bool
	}
	tcs := []testCase{
		{I: "a", O: Reg(A)},
		{I: "d", O: Reg(D)},
		{I: "0", O: Imm(0)},
		{I: "-7", O: Imm(-7)},
		{I: "+12", O: Imm(12)},
		{I: "2147483647", O: Imm(2147483647)},
		{I: "e", Err: true},
		{I: "ab", Err: true},
		{I: "2147483648", Err: true},
		{I: "1.5", Err: true},
		{I: "", Err: true},
	}
	for _, tc := range tcs {
		t.Run(tc.I, func(t *testing.T) {
			o, err := ParseOperand(tc.I)
			if tc.Err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.O, o)
		})
	}
}

func TestOperand(t *testing.T) {
	r, ok := Reg(C).Register()
	require.True(t, ok)
	require.Equal(t, C, r)
	_, ok = Reg(C).Immediate()
	require.False(t, ok)

	v, ok := Imm(-3).Immediate()
	require.True(t, ok)
	require.Equal(t, Int(-3), v)
	_, ok = Imm(-3).Register()
	require.False(t, ok)

	require.Panics(t, func() { Reg(NumRegs) })
	require.Equal(t, "c", Reg(C).String())
	require.Equal(t, "-3", Imm(-3).String())
}

func TestNew(t *testing.T) {
	for _, op := range All() {
		args := make([]Operand, op.Arity())
		ix, err := New(op, args...)
		require.NoError(t, err)
		require.Equal(t, op, ix.Op())
		require.Equal(t, op, LookupMnemonic(op.String()))

		_, err = New(op, append(args, Imm(1))...)
		require.Error(t, err)
	}
	_, err := New(Unknown)
	require.Error(t, err)
	require.Equal(t, Unknown, LookupMnemonic("mul"))
}

func TestClone(t *testing.T) {
	p := Program{IncI{X: Reg(A)}, TglI{Offset: Imm(-1)}}
	p2 := p.Clone()
	p2[0] = Toggle(p2[0])
	require.Equal(t, IncI{X: Reg(A)}, p[0])
	require.Equal(t, DecI{X: Reg(A)}, p2[0])
	require.Equal(t, []Op{Inc, Tgl}, p.Uses())
	require.Equal(t, "inc a\ntgl -1\n", p.String())
}
