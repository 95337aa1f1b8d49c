package bunny

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/internal/cadata"
)

func TestFingerprint(t *testing.T) {
	p1 := asm.MustParse("cpy 1 a\ninc a\n")
	p2 := asm.MustParse("# same program\ncpy  1 a\n\ninc a")
	p3 := asm.MustParse("cpy 1 a\ndec a\n")
	require.Equal(t, Fingerprint(p1), Fingerprint(p2))
	require.NotEqual(t, Fingerprint(p1), Fingerprint(p3))
	require.NoError(t, cadata.Check(Hash, Fingerprint(p1), []byte(asm.Format(p1))))

	id := Fingerprint(p1)
	id2, err := ParseID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, id2)

	_, err = ParseID("short")
	require.Error(t, err)
}
