package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/types"
)

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, types.FormatPDF, DetectFormat("resume.pdf"))
	assert.Equal(t, types.FormatPDF, DetectFormat("RESUME.PDF"))
	assert.Equal(t, types.FormatDOCX, DetectFormat("简历.docx"))
	assert.Equal(t, types.FormatUnknown, DetectFormat("resume.txt"))
	assert.Equal(t, types.FormatUnknown, DetectFormat("noext"))
}

// 构造一个最小的DOCX（zip + word/document.xml）
func buildTestDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCXParagraphs(t *testing.T) {
	xmlBody := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t>Senior Engineer</w:t></w:r></w:p>
    <w:p><w:r><w:t>Go and Python</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := buildTestDOCX(t, xmlBody)

	extractor, err := NewDocumentExtractor(context.Background())
	require.NoError(t, err)

	text, metadata, err := extractor.ExtractText(context.Background(), data, "resume.docx")
	require.NoError(t, err)

	// 段落之间以换行符连接
	assert.Equal(t, "Jane Doe\nSenior Engineer\nGo and Python", text)
	assert.Equal(t, "resume.docx", metadata["source_file"])
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	extractor, err := NewDocumentExtractor(context.Background())
	require.NoError(t, err)

	_, _, err = extractor.ExtractText(context.Background(), buf.Bytes(), "bad.docx")
	assert.Error(t, err)
}

func TestExtractTextUnsupportedFormat(t *testing.T) {
	extractor, err := NewDocumentExtractor(context.Background())
	require.NoError(t, err)

	_, _, err = extractor.ExtractText(context.Background(), []byte("plain"), "resume.txt")
	assert.Error(t, err)
}

func TestExtractDOCXEmptyPayload(t *testing.T) {
	extractor, err := NewDocumentExtractor(context.Background())
	require.NoError(t, err)

	_, _, err = extractor.ExtractText(context.Background(), nil, "empty.docx")
	assert.Error(t, err)
}
