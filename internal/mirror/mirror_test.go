package mirror

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/compendio/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMirror(t *testing.T) (*Mirror, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "elenco_atti.csv")
	return New(path, testLogger()), path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func sampleAtti() []*models.Atto {
	return []*models.Atto{
		{ID: 1, Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta", Oggetto: "Bilancio"},
		{ID: 2, Anno: "2024", Numero: "18", Tipologia: "determina", Fonte: "consiglio", Oggetto: "Nomina"},
	}
}

func TestExport(t *testing.T) {
	m, path := newTestMirror(t)

	require.NoError(t, m.Export(sampleAtti()))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, models.RowFields, records[0])
	assert.Equal(t, "17", records[1][1])
	assert.Equal(t, "Nomina", records[2][5])
}

func TestExport_EmptyListWritesHeaderOnly(t *testing.T) {
	m, path := newTestMirror(t)

	require.NoError(t, m.Export(nil))

	records := readCSV(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, models.RowFields, records[0])
}

func TestExport_OverwritesPreviousContent(t *testing.T) {
	m, path := newTestMirror(t)

	require.NoError(t, m.Export(sampleAtti()))
	require.NoError(t, m.Export(sampleAtti()[:1]))

	assert.Len(t, readCSV(t, path), 2)
}

func TestUpdateRow(t *testing.T) {
	m, path := newTestMirror(t)
	atti := sampleAtti()
	require.NoError(t, m.Export(atti))

	updated := *atti[0]
	updated.Oggetto = "Bilancio rettificato"
	updated.Note = "seconda lettura"
	require.NoError(t, m.UpdateRow(&updated))

	records := readCSV(t, path)
	assert.Equal(t, "Bilancio rettificato", records[1][5])
	assert.Equal(t, "seconda lettura", records[1][10])
	// The other row is untouched.
	assert.Equal(t, "Nomina", records[2][5])
}

func TestUpdateRow_NoMatchLeavesFileUnchanged(t *testing.T) {
	m, path := newTestMirror(t)
	require.NoError(t, m.Export(sampleAtti()))
	before := readCSV(t, path)

	ghost := &models.Atto{Anno: "1990", Numero: "99", Fonte: "sindaco", Oggetto: "ghost"}
	require.NoError(t, m.UpdateRow(ghost))

	assert.Equal(t, before, readCSV(t, path))
}

func TestUpdateRow_MissingFileIsNoop(t *testing.T) {
	m, _ := newTestMirror(t)

	a := sampleAtti()[0]
	assert.NoError(t, m.UpdateRow(a))
}
