package docs

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func file(name string, data []byte) File {
	return File{Name: name, Data: data, Size: int64(len(data))}
}

func TestKind(t *testing.T) {
	tests := []struct {
		f    File
		want string
	}{
		{File{Name: "P&L 2024.PDF"}, KindPDF},
		{File{Name: "census.xlsx"}, KindExcel},
		{File{Name: "rates.htm"}, KindHTML},
		{File{Name: "notes.md"}, KindMarkdown},
		{File{Name: "memo.docx"}, KindWord},
		{File{Name: "export.csv"}, KindText},
		{File{Name: "upload", MimeType: "application/pdf"}, KindPDF},
		{File{Name: "upload", MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, KindExcel},
		{File{Name: "upload", MimeType: "text/plain"}, KindText},
		{File{Name: "photo.png", MimeType: "image/png"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.f), tt.f.Name)
	}
}

func TestExtract_PlainText(t *testing.T) {
	e := NewTextExtractor()
	out, err := e.Extract(context.Background(), file("census.csv", []byte("month,adc\r\n2024-01,92.5   \r\n\r\n\r\n\r\n2024-02,93\r\n")))
	require.NoError(t, err)
	assert.Equal(t, "month,adc\n2024-01,92.5\n\n2024-02,93", out)
}

func TestExtract_HTML(t *testing.T) {
	html := `<html><head><style>td{color:red}</style></head><body>
<script>var leaked = 1;</script>
<h1>Rate Schedule</h1>
<table><tr><td>Private Room</td><td>$325</td></tr></table>
</body></html>`
	out, err := NewTextExtractor().Extract(context.Background(), file("rates.html", []byte(html)))
	require.NoError(t, err)
	assert.Contains(t, out, "Rate Schedule")
	assert.Contains(t, out, "Private Room\t$325")
	assert.NotContains(t, out, "leaked")
	assert.NotContains(t, out, "color:red")
}

func TestExtract_Markdown(t *testing.T) {
	md := "# Census Notes\n\nADC was **92.5** in March.\n\n```\nbeds: 120\n```\n"
	out, err := NewTextExtractor().Extract(context.Background(), file("notes.md", []byte(md)))
	require.NoError(t, err)
	assert.Contains(t, out, "Census Notes")
	assert.Contains(t, out, "ADC was 92.5 in March.")
	assert.Contains(t, out, "beds: 120")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "#")
}

func TestExtract_Word(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Total Revenue</w:t></w:r><w:r><w:tab/><w:t>1,200,000</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Licensed beds </w:t></w:r><w:r><w:t>120</w:t></w:r></w:p>
</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := NewTextExtractor().Extract(context.Background(), file("memo.docx", buf.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, out, "Total Revenue\t1,200,000")
	assert.Contains(t, out, "Licensed beds 120")
}

func TestExtract_WordMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("docProps/core.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = NewTextExtractor().Extract(context.Background(), file("memo.docx", buf.Bytes()))
	assert.Error(t, err)
}

func TestExtract_Excel(t *testing.T) {
	x := excelize.NewFile()
	require.NoError(t, x.SetSheetRow("Sheet1", "A1", &[]interface{}{"Month", "Revenue"}))
	require.NoError(t, x.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-01", 812000}))
	_, err := x.NewSheet("Census")
	require.NoError(t, err)
	require.NoError(t, x.SetSheetRow("Census", "A1", &[]interface{}{"ADC", 92}))
	buf, err := x.WriteToBuffer()
	require.NoError(t, err)

	out, err := NewTextExtractor().Extract(context.Background(), file("t12.xlsx", buf.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, out, "--- SHEET: Sheet1 ---")
	assert.Contains(t, out, "Month\tRevenue")
	assert.Contains(t, out, "2024-01\t812000")
	assert.Contains(t, out, "--- SHEET: Census ---")
	assert.Contains(t, out, "ADC\t92")
}

func TestExtract_CorruptPDF(t *testing.T) {
	_, err := NewTextExtractor().Extract(context.Background(), file("broken.pdf", []byte("%PDF-1.4 this is not really a pdf")))
	assert.Error(t, err)
}

func TestExtract_Rejections(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.Extract(context.Background(), file("photo.png", []byte{0x89, 'P', 'N', 'G'}))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = e.Extract(context.Background(), File{Name: "empty.txt"})
	assert.Error(t, err, "files without data fail validation")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Extract(ctx, file("a.txt", []byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}
