package textenc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestToUTF8PassesThroughUTF8(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte("设备名称,期数")...)
	out, charset, err := ToUTF8(in)
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", charset)
	assert.Equal(t, "设备名称,期数", string(out))
}

func TestToUTF8DecodesGBK(t *testing.T) {
	text := "设备名称,设备编号,期数,班次类型\n一号压机,YJ-01,一期,长白班\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	out, _, err := ToUTF8(gbk)
	require.NoError(t, err)
	assert.Equal(t, text, string(out))
}

func TestReadCSV(t *testing.T) {
	text := "设备名称,期数\n压机,一期\n\n烘箱\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	rows, err := ReadCSV(bytes.NewReader(gbk))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"设备名称", "期数"}, rows[0])
	assert.Equal(t, []string{"烘箱"}, rows[2])
}
