package catalog

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/repository"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "catalog.db"), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func workbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cell, &r))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectLayout(t *testing.T) {
	rows := [][]string{
		{"Прайс 2024"},
		{"№", "Артикул АГБ", "Номенклатура АГБ", "Код", "Ед.изм.", "Фасовка", "Вариант подбора 2", "Подбор", "Код 1С", "Sandvik"},
	}
	l := DetectLayout(rows)
	assert.Equal(t, 1, l.HeaderRow)

	byIndex := map[int]Column{}
	for _, c := range l.Columns {
		byIndex[c.Index] = c
	}
	_, ok := byIndex[0]
	assert.False(t, ok, "№ is ignored")
	assert.Equal(t, entity.FieldArticleAGB, byIndex[1].Field)
	assert.Equal(t, entity.FieldNomenclatureAGB, byIndex[2].Field)
	assert.Equal(t, entity.FieldCode, byIndex[3].Field)
	assert.Equal(t, entity.FieldUnit, byIndex[4].Field)
	assert.Equal(t, entity.FieldPackaging, byIndex[5].Field)
	assert.Equal(t, Column{Index: 6, Header: "Вариант подбора 2", Field: fieldVariant, Slot: 2}, byIndex[6])
	assert.Equal(t, 0, byIndex[7].Slot)
	assert.Equal(t, entity.FieldCode1C, byIndex[8].Field)
	assert.Equal(t, "competitor:sandvik", byIndex[9].Field)
}

func TestDetectLayout_FallsBackToFirstRow(t *testing.T) {
	l := DetectLayout([][]string{{"Bortlanger"}, {"x", "y"}})
	assert.Equal(t, 0, l.HeaderRow)
	require.Len(t, l.Columns, 1)
	assert.Equal(t, entity.FieldBortlanger, l.Columns[0].Field)
}

func TestImportRows_FillOnlyEmptyAndVariants(t *testing.T) {
	store := openStore(t)
	im := NewImporter(store, quiet())
	ctx := t.Context()

	first := [][]string{
		{"Артикул АГБ", "Номенклатура", "Ед.изм", "Вариант 1"},
		{"BL-4590", "Коронка буровая", "шт", "BL4590"},
		{"", "Без артикула", "шт", ""},
		{"-", "", "", ""},
	}
	ss, err := im.ImportRows(ctx, "A", first)
	require.NoError(t, err)
	assert.Equal(t, SheetStats{Sheet: "A", HeaderRow: 1, Imported: 1, Skipped: 2}, ss)

	second := [][]string{
		{"Артикул АГБ", "Номенклатура", "Код", "Вариант подбора 1", "Подбор"},
		{"BL-4590", "Другое название", "C-1", "BL 4590", "bl4590"},
		{"BL-4590", "", "", "", ""},
		{"R32-3660", "Штанга", "", "", ""},
	}
	ss, err = im.ImportRows(ctx, "B", second)
	require.NoError(t, err)
	assert.Equal(t, 1, ss.Updated)
	assert.Equal(t, 1, ss.Unchanged)
	assert.Equal(t, 1, ss.Imported)

	rec, err := store.FindByField(ctx, entity.FieldArticleAGB, "BL-4590")
	require.NoError(t, err)
	assert.Equal(t, "Коронка буровая", rec.NomenclatureAGB, "populated values are never overwritten")
	assert.Equal(t, "C-1", rec.Code)
	assert.Equal(t, "шт", rec.Unit)
	assert.Equal(t, "BL4590", rec.Variants[0])
	assert.Equal(t, "BL 4590", rec.Variants[1], "occupied slot 1 falls back to the first free slot")
	assert.Equal(t, "", rec.Variants[2], "case-insensitive duplicate is not added")

	n, err := store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportRows_UnkeyedSheetCreatesRecords(t *testing.T) {
	store := openStore(t)
	rows := [][]string{
		{"Код 1С", "Bortlanger", "Epiroc", "Almazgeobur", "Sandvik"},
		{"00123", "BT-1", "-", "", "SV-9"},
		{"", "", "", "", ""},
	}
	ss, err := NewImporter(store, quiet()).ImportRows(t.Context(), "base", rows)
	require.NoError(t, err)
	assert.Equal(t, 1, ss.Imported)
	assert.Equal(t, 1, ss.Skipped)

	all, err := store.ListRecords(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "00123", all[0].Code1C)
	assert.Equal(t, "BT-1", all[0].Bortlanger)
	assert.Equal(t, "", all[0].Epiroc)
	assert.Equal(t, "SV-9", all[0].Competitors["sandvik"])
}

func TestImportWorkbook(t *testing.T) {
	store := openStore(t)
	data := workbook(t, map[string][][]any{
		"Каталог": {
			{"Артикул АГБ", "Наименование", "Фасовка"},
			{"AGB-1", "Переходник", "10"},
			{"AGB-2", "Муфта", nil},
		},
	})
	stats, err := NewImporter(store, quiet()).ImportWorkbook(t.Context(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Imported)
	require.Len(t, stats.Sheets, 1)
	assert.Equal(t, "Каталог", stats.Sheets[0].Sheet)

	rec, err := store.FindByField(t.Context(), entity.FieldArticleAGB, "AGB-1")
	require.NoError(t, err)
	assert.Equal(t, "10", rec.Packaging)
}

func TestImportWorkbook_Invalid(t *testing.T) {
	_, err := NewImporter(openStore(t), quiet()).ImportWorkbook(t.Context(), []byte("not a workbook"))
	assert.Error(t, err)
}
