package extract

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kart-io/legal-rag/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name     string
		document bool
		faq      bool
	}{
		{"contract.pdf", true, false},
		{"Contract.PDF", true, false},
		{"memo.docx", true, false},
		{"memo.doc", true, false},
		{"faq.csv", false, true},
		{"faq.XLSX", false, true},
		{"faq.xls", false, true},
		{"notes.txt", false, false},
		{"noext", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.document, IsDocument(tt.name))
			assert.Equal(t, tt.faq, IsFAQ(tt.name))
		})
	}
}

func TestExtractFAQ_CSV(t *testing.T) {
	path := writeFile(t, "faq.csv", "\ufeffquestion,answer,category\n"+
		"What is a tort?,A civil wrong.,basics\n"+
		",,\n"+
		"nan,ignored,\n"+
		"Orphan question,,\n"+
		"\"What is \"\"mens rea\"\"?\",\"Guilty mind.\",criminal\n"+
		"short row\n")

	chunks, err := ExtractFAQ(path)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Question: What is a tort?\nAnswer: A civil wrong.", chunks[0].Text)
	assert.Equal(t, model.ResourceTypeFAQ, chunks[0].Type)
	assert.Equal(t, "0", chunks[0].RowID)
	assert.Equal(t, 0, chunks[0].Index)

	assert.Equal(t, `What is "mens rea"?`, chunks[1].Question)
	assert.Equal(t, "Guilty mind.", chunks[1].Answer)
	assert.Equal(t, "4", chunks[1].RowID)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestFAQRecords_ValidAndBlankRows(t *testing.T) {
	rows := [][]string{{" answer ", "question"}}
	for i := 0; i < 7; i++ {
		rows = append(rows, []string{"a", "q"})
	}
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{"", "  "})
	}

	chunks, err := FAQRecords(rows)
	require.NoError(t, err)
	assert.Len(t, chunks, 7)
	assert.Equal(t, "q", chunks[0].Question)
}

func TestExtractFAQ_MissingColumns(t *testing.T) {
	tests := map[string]string{
		"no answer column": "question,reply\nq,a\n",
		"case sensitive":   "Question,Answer\nq,a\n",
		"empty file":       "",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractFAQ(writeFile(t, "faq.csv", content))
			var mce *MissingColumnsError
			require.ErrorAs(t, err, &mce)
			assert.Equal(t, []string{"question", "answer"}, mce.Required)
		})
	}
}

func TestExtractFAQ_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"question", "answer"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Can I appeal?", "Within 30 days."}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"Is notice required?", "Yes."}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	chunks, err := ExtractFAQ(path)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Can I appeal?", chunks[0].Question)
	assert.Equal(t, "Yes.", chunks[1].Answer)
}

// le encodes values little-endian.
func le(vs ...interface{}) []byte {
	var b bytes.Buffer
	for _, v := range vs {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	return b.Bytes()
}

func biffRecord(b *bytes.Buffer, id uint16, data []byte) {
	b.Write(le(id, uint16(len(data))))
	b.Write(data)
}

// writeXLS builds a single-sheet BIFF8 workbook in an OLE2 container.
// Cells go through the shared string table; a nil row has no records at all.
func writeXLS(t *testing.T, rows [][]string) string {
	t.Helper()
	const (
		sectorSize  = 512
		minStream   = 4096
		endOfChain  = uint32(0xFFFFFFFE)
		freeSect    = uint32(0xFFFFFFFF)
		fatSect     = uint32(0xFFFFFFFD)
		sheetName   = "Sheet1"
		biffVersion = uint16(0x0600)
	)

	var strs []string
	index := map[string]uint32{}
	refs := 0
	for _, row := range rows {
		for _, v := range row {
			refs++
			if _, ok := index[v]; !ok {
				index[v] = uint32(len(strs))
				strs = append(strs, v)
			}
		}
	}

	bof := func(b *bytes.Buffer, typ uint16) {
		biffRecord(b, 0x0809, le(biffVersion, typ, uint16(0x0DBB), uint16(0x07CC), uint32(0), uint32(0x06)))
	}

	// workbook globals: BOF, BOUNDSHEET, SST, EOF
	var globals bytes.Buffer
	bof(&globals, 0x0005)
	sheetPos := globals.Len() + 4
	biffRecord(&globals, 0x0085, append(le(uint32(0), uint8(0), uint8(0), uint8(len(sheetName)), uint8(0)), sheetName...))
	sst := bytes.NewBuffer(le(uint32(refs), uint32(len(strs))))
	for _, v := range strs {
		sst.Write(le(uint16(len(v)), uint8(0)))
		sst.WriteString(v)
	}
	biffRecord(&globals, 0x00FC, sst.Bytes())
	biffRecord(&globals, 0x000A, nil)

	// worksheet: BOF, ROW block, LABELSST cells, EOF
	var sheet bytes.Buffer
	bof(&sheet, 0x0010)
	for i, row := range rows {
		if row != nil {
			biffRecord(&sheet, 0x0208, le(uint16(i), uint16(0), uint16(len(row)), uint16(0x00FF), uint16(0), uint16(0), uint32(0x0100)))
		}
	}
	for i, row := range rows {
		for j, v := range row {
			biffRecord(&sheet, 0x00FD, le(uint16(i), uint16(j), uint16(0x0F), index[v]))
		}
	}
	biffRecord(&sheet, 0x000A, nil)

	stream := append(append([]byte{}, globals.Bytes()...), sheet.Bytes()...)
	binary.LittleEndian.PutUint32(stream[sheetPos:], uint32(globals.Len()))
	if len(stream) < minStream {
		stream = append(stream, make([]byte, minStream-len(stream))...)
	}
	streamSize := len(stream)
	sectors := (streamSize + sectorSize - 1) / sectorSize
	stream = append(stream, make([]byte, sectors*sectorSize-streamSize)...)

	// sector 0: FAT, sector 1: directory, sectors 2..: Workbook stream
	var file bytes.Buffer
	file.Write(le(uint32(0xE011CFD0), uint32(0xE11AB1A1), [4]uint32{},
		uint16(0x003E), uint16(0x0003), uint16(0xFFFE), uint16(9), uint16(6), uint16(0), uint64(0),
		uint32(1), uint32(1), uint32(0), uint32(minStream), endOfChain, uint32(0), endOfChain, uint32(0)))
	msat := make([]uint32, 109)
	for i := range msat {
		msat[i] = freeSect
	}
	msat[0] = 0
	file.Write(le(msat))

	fat := make([]uint32, sectorSize/4)
	for i := range fat {
		fat[i] = freeSect
	}
	fat[0] = fatSect
	fat[1] = endOfChain
	for i := 0; i < sectors; i++ {
		fat[2+i] = uint32(3 + i)
	}
	fat[1+sectors] = endOfChain
	file.Write(le(fat))

	entry := func(name string, typ uint8, child, start, size uint32) []byte {
		var n [32]uint16
		u := utf16.Encode([]rune(name))
		copy(n[:], u)
		return le(n, uint16((len(u)+1)*2), typ, uint8(1), freeSect, freeSect, child,
			[8]uint16{}, uint32(0), [2]uint64{}, start, size, uint32(0))
	}
	dir := append(entry("Root Entry", 5, 1, endOfChain, 0), entry("Workbook", 2, freeSect, 2, uint32(streamSize))...)
	file.Write(dir)
	file.Write(make([]byte, sectorSize-len(dir)))
	file.Write(stream)

	path := filepath.Join(t.TempDir(), "faq.xls")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o600))
	return path
}

func TestExtractFAQ_XLS(t *testing.T) {
	path := writeXLS(t, [][]string{
		{"id", "question", "answer"},
		{"1", "What is a lease?", "A contract for use of property."},
		nil,
		{"3", "nan", "nan"},
		{"4", "Who pays repairs?"},
		{"5", "  Can rent rise?  ", "Only as the lease allows."},
	})

	chunks, err := ExtractFAQ(path)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "What is a lease?", chunks[0].Question)
	assert.Equal(t, "A contract for use of property.", chunks[0].Answer)
	assert.Equal(t, "Question: What is a lease?\nAnswer: A contract for use of property.", chunks[0].Text)
	assert.Equal(t, "0", chunks[0].RowID)

	assert.Equal(t, "Can rent rise?", chunks[1].Question)
	assert.Equal(t, "4", chunks[1].RowID)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, model.ResourceTypeFAQ, chunks[1].Type)
}

func TestExtractFAQ_XLSMissingColumns(t *testing.T) {
	_, err := ExtractFAQ(writeXLS(t, [][]string{{"Question", "Answer"}, {"q", "a"}}))
	var missing *MissingColumnsError
	assert.ErrorAs(t, err, &missing)
}

func TestExtractFAQ_XLSNotOLE(t *testing.T) {
	_, err := ExtractFAQ(writeFile(t, "faq.xls", strings.Repeat("question,answer\n", 40)))
	assert.Error(t, err)
}

func TestExtractFAQ_Unsupported(t *testing.T) {
	_, err := ExtractFAQ(writeFile(t, "faq.txt", "question,answer\n"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func writeDocx(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "brief.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractDocument_Docx(t *testing.T) {
	path := writeDocx(t, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Section 1. </w:t></w:r><w:r><w:t>Definitions</w:t></w:r></w:p>
    <w:p><w:r><w:t>The "Tenant" means the lessee.</w:t></w:r></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
    <w:p></w:p>
  </w:body>
</w:document>`)

	text, err := ExtractDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "Section 1. Definitions\nThe \"Tenant\" means the lessee.\ncell", text)
}

// writePDF builds an uncompressed PDF with one Helvetica text line per page.
func writePDF(t *testing.T, pages ...string) string {
	t.Helper()

	// 1 catalog, 2 page tree, 3 font, then a page and its content stream per page
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	kids := make([]string, 0, len(pages))
	for i, text := range pages {
		pageID := 4 + 2*i
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageID+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "statute.pdf")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o600))
	return path
}

func TestExtractDocument_PDF(t *testing.T) {
	path := writePDF(t, "Article 1. The tenant shall pay rent monthly.", "Article 2. Notice must be given in writing.")

	text, err := ExtractDocument(path)
	require.NoError(t, err)

	first := strings.Index(text, "Article 1. The tenant shall pay rent monthly.")
	second := strings.Index(text, "Article 2. Notice must be given in writing.")
	require.GreaterOrEqual(t, first, 0, text)
	require.Greater(t, second, first, text)
	assert.Equal(t, strings.TrimRight(text, " \n"), text)
}

func TestExtractDocument_PDFUppercaseExtension(t *testing.T) {
	src := writePDF(t, "Section 9. Severability.")
	path := filepath.Join(filepath.Dir(src), "STATUTE.PDF")
	require.NoError(t, os.Rename(src, path))

	text, err := ExtractDocument(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Section 9. Severability.")
}

func TestExtractDocument_Errors(t *testing.T) {
	t.Run("legacy doc is not a zip", func(t *testing.T) {
		_, err := ExtractDocument(writeFile(t, "old.doc", "\xd0\xcf\x11\xe0 binary"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		_, err := ExtractDocument(writeFile(t, "broken.pdf", "%PDF-1.4 garbage"))
		assert.Error(t, err)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ExtractDocument(writeFile(t, "notes.txt", "hello"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
