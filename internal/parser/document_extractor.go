package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"

	"job-match-go/internal/logger"
	"job-match-go/internal/types"
)

// DocumentExtractor 按格式分发的文档文本提取器
// PDF 走 Eino PDF Parser，DOCX 走纯Go的zip+xml解析
type DocumentExtractor struct {
	pdfParser *pdf.PDFParser
	logger    zerolog.Logger
	timeout   time.Duration
}

// DocumentExtractorOption 提取器的配置选项
type DocumentExtractorOption func(*DocumentExtractor)

// WithExtractTimeout 配置单次提取的超时
func WithExtractTimeout(d time.Duration) DocumentExtractorOption {
	return func(e *DocumentExtractor) {
		e.timeout = d
	}
}

// WithExtractorLogger 配置自定义日志记录器
func WithExtractorLogger(l zerolog.Logger) DocumentExtractorOption {
	return func(e *DocumentExtractor) {
		e.logger = l
	}
}

// NewDocumentExtractor 初始化文档提取器
// PDF解析配置为不按页面分割，以获取整个文档的连续文本
func NewDocumentExtractor(ctx context.Context, options ...DocumentExtractorOption) (*DocumentExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 非常重要：我们希望获取整个PDF的文本作为单个字符串
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &DocumentExtractor{
		pdfParser: p,
		logger:    logger.Logger.With().Str("component", "document_extractor").Logger(),
		timeout:   30 * time.Second,
	}

	// 应用选项
	for _, option := range options {
		option(extractor)
	}

	return extractor, nil
}

// DetectFormat 按文件扩展名判断文档格式
func DetectFormat(filename string) types.DocumentFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return types.FormatPDF
	case ".docx":
		return types.FormatDOCX
	default:
		return types.FormatUnknown
	}
}

// DetectFormat 按文件扩展名判断文档格式
func (e *DocumentExtractor) DetectFormat(filename string) types.DocumentFormat {
	return DetectFormat(filename)
}

// ExtractText 从字节数组提取文本，按文件名后缀分发到对应的解析器
// 返回: 提取的文本内容 (string), 解析器元数据 (map[string]interface{}), 错误 (error)
func (e *DocumentExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, map[string]interface{}, error) {
	format := DetectFormat(filename)
	switch format {
	case types.FormatPDF:
		return e.extractPDF(ctx, bytes.NewReader(data), filename)
	case types.FormatDOCX:
		return e.extractDOCX(data, filename)
	default:
		return "", nil, fmt.Errorf("unsupported document format: %s", filename)
	}
}

// extractPDF 从 io.Reader 中提取PDF文本
func (e *DocumentExtractor) extractPDF(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	e.logger.Debug().Str("uri", uri).Msg("开始提取PDF文本")

	extraMeta := map[string]interface{}{
		"source_file":     uri,
		"extraction_time": time.Now().Format(time.RFC3339),
	}

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(extraMeta),
	)

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Error().Err(err).Str("uri", uri).Dur("duration", duration).Msg("PDF提取失败")
		return "", extraMeta, fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}

	if len(docs) == 0 {
		return "", extraMeta, fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	// 合并所有文档的内容，页面之间不加分隔符
	var fullContent strings.Builder
	for _, doc := range docs {
		fullContent.WriteString(doc.Content)
	}

	// 合并元数据
	var finalMetadata map[string]interface{}
	if docs[0].MetaData != nil {
		finalMetadata = docs[0].MetaData
	} else {
		finalMetadata = make(map[string]interface{})
	}
	for k, v := range extraMeta {
		finalMetadata[k] = v
	}
	finalMetadata["processing_duration_ms"] = duration.Milliseconds()
	finalMetadata["document_count"] = len(docs)
	finalMetadata["text_length"] = fullContent.Len()

	e.logger.Debug().Int("chars", fullContent.Len()).Dur("duration", duration).Msg("PDF提取完成")
	return fullContent.String(), finalMetadata, nil
}

// extractDOCX 解压DOCX并从 word/document.xml 中抽取段落文本
// 段落之间以换行符连接
func (e *DocumentExtractor) extractDOCX(data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	metadata := map[string]interface{}{
		"source_file":     uri,
		"extraction_time": time.Now().Format(time.RFC3339),
	}

	if len(data) == 0 {
		return "", metadata, fmt.Errorf("empty DOCX payload for URI %s", uri)
	}

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", metadata, fmt.Errorf("failed to open DOCX archive %s: %w", uri, err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", metadata, fmt.Errorf("word/document.xml not found in %s", uri)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", metadata, fmt.Errorf("failed to open document.xml in %s: %w", uri, err)
	}
	defer rc.Close()

	text, err := decodeDOCXBody(rc)
	if err != nil {
		return "", metadata, fmt.Errorf("failed to decode DOCX body of %s: %w", uri, err)
	}

	duration := time.Since(startTime)
	metadata["processing_duration_ms"] = duration.Milliseconds()
	metadata["text_length"] = len(text)

	e.logger.Debug().Int("chars", len(text)).Dur("duration", duration).Msg("DOCX提取完成")
	return text, metadata, nil
}

// decodeDOCXBody 流式遍历XML，段落结束处补换行
func decodeDOCXBody(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var buf strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					buf.WriteString(text)
				}
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				buf.WriteByte('\n')
			}
		}
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
