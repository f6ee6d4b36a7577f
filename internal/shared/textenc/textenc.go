package textenc

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ToUTF8 转为 UTF-8，返回识别出的源编码。非 UTF-8 内容默认按 GB18030 处理，
// 只有检测结果明显偏向 Big5 时才按繁体解码
func ToUTF8(data []byte) ([]byte, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, "UTF-8", nil
	}

	charset := detect(data)
	var enc encoding.Encoding = simplifiedchinese.GB18030
	if charset == "Big5" {
		enc = traditionalchinese.Big5
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, charset, fmt.Errorf("decode %s: %w", charset, err)
	}
	return out, charset, nil
}

func detect(data []byte) string {
	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil {
		return "GB18030"
	}
	gb, big5 := -1, -1
	for _, r := range results {
		switch strings.ToUpper(r.Charset) {
		case "GB-18030", "GB18030", "GBK", "GB2312":
			if gb < 0 {
				gb = r.Confidence
			}
		case "BIG5":
			if big5 < 0 {
				big5 = r.Confidence
			}
		}
	}
	if big5 >= 0 && big5-gb >= 20 {
		return "Big5"
	}
	return "GB18030"
}

// ReadCSV 读取任意常见编码的 CSV，列数可不一致
func ReadCSV(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data, _, err := ToUTF8(raw)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}
