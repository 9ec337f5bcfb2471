package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikePrefixEscapesWildcards(t *testing.T) {
	assert.Equal(t, "spring%", LikePrefix("spring"))
	assert.Equal(t, `A!_%`, LikePrefix("A_"))
	assert.Equal(t, `50!%%`, LikePrefix("50%"))
	assert.Equal(t, `!!%`, LikePrefix("!"))
	assert.Equal(t, `\%`, LikePrefix(`\`))
}
