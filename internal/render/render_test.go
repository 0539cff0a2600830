package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

func rowsTable(rows []row) func() Table {
	return func() Table {
		t := Table{Headers: []string{"NAME", "PRICE"}}
		for _, r := range rows {
			price := ""
			if r.Price != nil {
				price = "set"
			}
			t.Rows = append(t.Rows, []string{r.Name, price})
		}
		return t
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	data := []row{{Name: "Sofa"}, {Name: "Floor lamp"}}
	require.NoError(t, NewRenderer(&buf, Options{}).Render(data, rowsTable(data)))

	assert.Equal(t, "NAME        PRICE\n----------  -----\nSofa\nFloor lamp\n", buf.String())
}

func TestRender_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, Options{}).Render([]row{}, rowsTable(nil)))
	assert.Equal(t, "(none)\n", buf.String())
}

func TestRender_PorcelainTableIsTSV(t *testing.T) {
	var buf bytes.Buffer
	data := []row{{Name: "Sofa"}}
	require.NoError(t, NewRenderer(&buf, Options{Porcelain: true}).Render(data, rowsTable(data)))
	assert.Equal(t, "NAME\tPRICE\nSofa\t\n", buf.String())
}

func TestRender_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	data := []row{{Name: "a"}, {Name: "b"}}
	require.NoError(t, NewRenderer(&buf, Options{Format: FormatNDJSON}).Render(data, nil))
	assert.Equal(t, "{\"name\":\"a\"}\n{\"name\":\"b\"}\n", buf.String())

	buf.Reset()
	require.NoError(t, NewRenderer(&buf, Options{Format: FormatNDJSON}).Render(row{Name: "one"}, nil))
	assert.Equal(t, "{\"name\":\"one\"}\n", buf.String())
}

func TestRender_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	price := 12.5
	require.NoError(t, NewRenderer(&buf, Options{Format: FormatYAML}).Render([]row{{Name: "Sofa", Price: &price}}, nil))
	assert.Equal(t, "- name: Sofa\n  price: 12.5\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, Options{Format: FormatJSON, Porcelain: true}).Render(row{Name: "Sofa"}, nil))
	assert.Equal(t, "{\"name\":\"Sofa\"}\n", buf.String())
}
