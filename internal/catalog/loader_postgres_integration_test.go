//go:build integration

package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbacert/internal/catalog"
	"urbacert/pkg/testutil/containers"
)

func TestPostgresLoaderIntegration(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pc.DB.ExecContext(ctx, `
		CREATE TABLE b_zonage_plu (
			id SERIAL PRIMARY KEY,
			typezone TEXT,
			libelle TEXT,
			geom GEOMETRY(Polygon)
		)`)
	require.NoError(t, err)

	_, err = pc.DB.ExecContext(ctx, `
		INSERT INTO b_zonage_plu (typezone, libelle, geom) VALUES
		('Ub', 'Zone urbaine', ST_GeomFromText('POLYGON((0 0, 100 0, 100 100, 0 100, 0 0))')),
		('N', NULL, ST_GeomFromText('POLYGON((100 0, 200 0, 200 100, 100 100, 100 0))')),
		('ghost', 'no geometry', NULL)`)
	require.NoError(t, err)

	descs := []catalog.LayerDescriptor{{
		Schema:     "public",
		Name:       "b_zonage_plu",
		GeomColumn: "geom",
		// "missing" is dropped against the live column set.
		KeepAttrs:     []string{"typezone", "libelle", "missing"},
		CoverageAttrs: []string{"typezone"},
	}}
	communes := []catalog.CommuneRecord{{INSEE: "33234", Name: "Latresne", Department: "33"}}

	cat, err := catalog.NewPostgresLoader(pc.DB).Load(ctx, descs, communes, "public.parcelles")
	require.NoError(t, err)

	layers, unknown := cat.ListLayers([]string{"public"})
	require.Empty(t, unknown)
	require.Len(t, layers, 1)

	layer := layers[0]
	assert.Equal(t, []string{"typezone", "libelle"}, layer.KeepAttrs)
	require.Len(t, layer.Features, 2, "NULL geometry rows are skipped")

	first := layer.Features[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "Ub", first.AttrValue("typezone"))
	assert.InDelta(t, 10000, first.Geometry.Area(), 0.1)

	second := layer.Features[1]
	assert.Equal(t, "N", second.AttrValue("typezone"))
	assert.Empty(t, second.AttrValue("libelle"), "NULL attribute omitted")
}
