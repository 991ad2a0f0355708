package centers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	all := List("")
	require.Len(t, all, 4)
	assert.Equal(t, "Green E-Waste Hub", all[0].Name)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].DistanceKm, all[i].DistanceKm)
	}

	mumbai := List(" mumbai ")
	require.Len(t, mumbai, 1)
	assert.Equal(t, "EcoRecycle Center", mumbai[0].Name)

	assert.Empty(t, List("Chennai"))
}

func TestList_ReturnsCopy(t *testing.T) {
	first := List("")
	first[0].Name = "changed"
	assert.Equal(t, "Green E-Waste Hub", List("")[0].Name)
}
