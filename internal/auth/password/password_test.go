package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("correct horse", encoded))
	assert.False(t, Verify("wrong horse", encoded))
	assert.False(t, NeedsRehash(encoded))
}

func TestHashUsesRandomSalt(t *testing.T) {
	a, err := Hash("same")
	require.NoError(t, err)
	b, err := Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	assert.False(t, Verify("x", ""))
	assert.False(t, Verify("x", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=1,t=1$c2FsdA$aGFzaA"))
	assert.False(t, Verify("x", "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA"))
	assert.True(t, NeedsRehash("not-a-hash"))
}

func TestOlderCostsStillVerifyButNeedRehash(t *testing.T) {
	cheap := Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16}
	encoded, err := cheap.Hash("legacy-secret")
	require.NoError(t, err)

	assert.True(t, Verify("legacy-secret", encoded))
	assert.True(t, NeedsRehash(encoded))
}

func TestCheckStrength(t *testing.T) {
	assert.ErrorIs(t, CheckStrength("short"), ErrTooShort)
	assert.ErrorIs(t, CheckStrength("   seven7   "), ErrTooShort)
	assert.ErrorIs(t, CheckStrength(strings.Repeat("a", MaxLength+1)), ErrTooLong)
	assert.NoError(t, CheckStrength("correct-horse"))
	assert.NoError(t, CheckStrength("pässwörd"))
}
