package geo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(t *testing.T, x, y, side float64) *Geometry {
	t.Helper()
	g, err := FromWKT(squareWKT(x, y, side))
	require.NoError(t, err)
	return g
}

func squareWKT(x, y, side float64) string {
	x2, y2 := x+side, y+side
	return fmt.Sprintf("POLYGON((%g %g, %g %g, %g %g, %g %g, %g %g))",
		x, y, x2, y, x2, y2, x, y2, x, y)
}

func TestIntersectionArea(t *testing.T) {
	a := square(t, 0, 0, 10)
	b := square(t, 5, 5, 10)

	inter, err := a.Intersection(b)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, inter.Area(), 1e-9)

	covered, err := a.Covers(inter)
	require.NoError(t, err)
	assert.True(t, covered, "intersection must stay inside the first operand")
}

func TestDisjointIntersectionIsEmpty(t *testing.T) {
	a := square(t, 0, 0, 10)
	b := square(t, 100, 100, 5)

	inter, err := a.Intersection(b)
	require.NoError(t, err)
	assert.True(t, inter.IsEmpty())
}

func TestBoundsPrefilter(t *testing.T) {
	a := square(t, 0, 0, 10)
	b := square(t, 5, 5, 10)
	c := square(t, 100, 100, 5)

	assert.True(t, a.Bounds().Intersects(b.Bounds()))
	assert.False(t, a.Bounds().Intersects(c.Bounds()))
}

func TestZeroBufferReturnsSameGeometry(t *testing.T) {
	a := square(t, 0, 0, 10)
	buf, err := a.Buffer(0)
	require.NoError(t, err)
	assert.Same(t, a, buf)
}

func TestBufferGrowsArea(t *testing.T) {
	a := square(t, 0, 0, 10)
	buf, err := a.Buffer(5)
	require.NoError(t, err)
	assert.Greater(t, buf.Area(), a.Area())
}

func TestRepairBowtie(t *testing.T) {
	// Self-intersecting "bowtie" polygon: repair must produce a valid result.
	bowtie, err := FromWKT("POLYGON((0 0, 10 10, 10 0, 0 10, 0 0))")
	require.NoError(t, err)
	require.False(t, bowtie.IsValid())

	fixed, err := bowtie.Repair()
	require.NoError(t, err)
	assert.True(t, fixed.IsValid())
	assert.Greater(t, fixed.Area(), 0.0)
}

func TestUnionAll(t *testing.T) {
	a := square(t, 0, 0, 10)
	b := square(t, 20, 0, 10)

	u, err := UnionAll([]*Geometry{a, b, nil})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, u.Area(), 1e-9)

	empty, err := UnionAll(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
