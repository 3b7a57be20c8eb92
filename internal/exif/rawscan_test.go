package exif

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// ifdEntry 是测试夹具里的一个 IFD 条目（typ=2 即 ASCII，单元 1 字节）。
type ifdEntry struct {
	tag uint16
	typ uint16
	val []byte
}

// buildTIFF 手工构造一个单 IFD 的 TIFF 块：
// 头 8 字节 + 条目数 + 12 字节条目 × n + next-IFD(0) + 值区。
// 值 ≤4 字节内联，否则写入值区并回填偏移。
func buildTIFF(t *testing.T, bo binary.ByteOrder, entries []ifdEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	if bo == binary.LittleEndian {
		buf.WriteString("II")
	} else {
		buf.WriteString("MM")
	}
	w16 := func(v uint16) {
		var b [2]byte
		bo.PutUint16(b[:], v)
		buf.Write(b[:])
	}
	w32 := func(v uint32) {
		var b [4]byte
		bo.PutUint32(b[:], v)
		buf.Write(b[:])
	}

	w16(42)
	w32(8) // 首个 IFD 紧跟头部

	w16(uint16(len(entries)))
	valueStart := 8 + 2 + 12*len(entries) + 4
	var valueArea bytes.Buffer
	for _, e := range entries {
		w16(e.tag)
		w16(e.typ)
		w32(uint32(len(e.val)))
		if len(e.val) <= 4 {
			pad := make([]byte, 4)
			copy(pad, e.val)
			buf.Write(pad)
		} else {
			w32(uint32(valueStart + valueArea.Len()))
			valueArea.Write(e.val)
		}
	}
	w32(0) // 无下一个 IFD
	buf.Write(valueArea.Bytes())
	return buf.Bytes()
}

// buildJPEG 把 TIFF 块包进 APP1/EXIF 段，并在前面垫一个应被跳过的 APP0。
func buildJPEG(t *testing.T, tiffBlock []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8}) // SOI

	// APP0/JFIF：内容无关紧要，只验证跳段逻辑。
	app0 := []byte("JFIF\x00\x01")
	buf.Write([]byte{0xFF, 0xE0})
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(app0)+2))
	buf.Write(l[:])
	buf.Write(app0)

	payload := append([]byte("Exif\x00\x00"), tiffBlock...)
	buf.Write([]byte{0xFF, 0xE1})
	binary.BigEndian.PutUint16(l[:], uint16(len(payload)+2))
	buf.Write(l[:])
	buf.Write(payload)

	buf.Write([]byte{0xFF, 0xD9}) // EOI
	return buf.Bytes()
}

func asciiVal(s string) []byte { return append([]byte(s), 0) }

func TestScanJPEGMarkers_BothEndians(t *testing.T) {
	for _, bo := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		jpg := buildJPEG(t, buildTIFF(t, bo, []ifdEntry{
			{tagDateTimeOriginal, 2, asciiVal("2021:04:30 09:00:00")},
			{tagModel, 2, asciiVal("Canon EOS 5D")},
		}))

		ts, model := scanJPEGMarkers(jpg)
		if ts != "20210430_090000" {
			t.Fatalf("[%v] 时间戳不符：%q", bo, ts)
		}
		if model != "CanonEOS5D" {
			t.Fatalf("[%v] 机型应剔除空格：%q", bo, model)
		}
	}
}

func TestScanJPEGMarkers_InlineValue(t *testing.T) {
	// ≤4 字节的值内联存储在 offset 字段里。
	jpg := buildJPEG(t, buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagModel, 2, []byte("X10\x00")},
	}))

	_, model := scanJPEGMarkers(jpg)
	if model != "X10" {
		t.Fatalf("内联值解析失败：%q", model)
	}
}

func TestParseIFD_LinearFirstWins(t *testing.T) {
	// IFD 层是纯线性扫描：存储顺序在前的时间 tag 胜出，不做优先级重排。
	b := buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTime, 2, asciiVal("2021:05:01 10:00:00")},
		{tagDateTimeOriginal, 2, asciiVal("2021:04:30 09:00:00")},
	})

	ts, _ := parseTIFF(b)
	if ts != "20210501_100000" {
		t.Fatalf("线性扫描应取先出现的 DateTime：%q", ts)
	}
}

func TestParseIFD_ModelBeatsMakeRegardlessOfOrder(t *testing.T) {
	b := buildTIFF(t, binary.BigEndian, []ifdEntry{
		{tagMake, 2, asciiVal("Nikon Corp")},
		{tagModel, 2, asciiVal("D850")},
	})

	_, model := parseTIFF(b)
	if model != "D850" {
		t.Fatalf("Model 应优先于 Make：%q", model)
	}

	// 只有 Make 时才回退。
	b = buildTIFF(t, binary.BigEndian, []ifdEntry{
		{tagMake, 2, asciiVal("Nikon Corp")},
	})
	_, model = parseTIFF(b)
	if model != "NikonCorp" {
		t.Fatalf("无 Model 时应回退到 Make：%q", model)
	}
}

func TestParseIFD_BoundsViolationSkipsFieldOnly(t *testing.T) {
	b := buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:04:30 09:00:00")},
		{tagModel, 2, asciiVal("Canon EOS 5D")},
	})
	// 把 DateTimeOriginal（第一个条目）的值偏移改到缓冲区外：
	// 该字段应被静默跳过，Model 仍可提取。
	entOff := 8 + 2 // 首个条目
	binary.LittleEndian.PutUint32(b[entOff+8:entOff+12], uint32(len(b)+100))

	ts, model := parseTIFF(b)
	if ts != "" {
		t.Fatalf("越界字段应被跳过，却得到 %q", ts)
	}
	if model != "CanonEOS5D" {
		t.Fatalf("越界不应中断整个 IFD 循环：%q", model)
	}
}

func TestParseIFD_MalformedTimestampIsNotUsed(t *testing.T) {
	b := buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:99:99 10:00:00")},
		{tagDateTime, 2, asciiVal("2021:04:30 09:00:00")},
	})

	ts, _ := parseTIFF(b)
	// 畸形值不占坑：继续线性扫描后面的时间 tag。
	if ts != "20210430_090000" {
		t.Fatalf("畸形时间不应胜出：%q", ts)
	}
}

func TestParseTIFF_RejectsBadHeader(t *testing.T) {
	if ts, _ := parseTIFF([]byte("XX\x2a\x00\x08\x00\x00\x00")); ts != "" {
		t.Fatalf("非法字节序标识应失败")
	}
	bad := buildTIFF(t, binary.LittleEndian, nil)
	binary.LittleEndian.PutUint16(bad[2:4], 43) // magic 不是 42
	if ts, _ := parseTIFF(bad); ts != "" {
		t.Fatalf("magic 不符应失败")
	}
	if ts, _ := parseTIFF([]byte("II\x2a")); ts != "" {
		t.Fatalf("长度不足应失败")
	}
}

func TestScanJPEGMarkers_Terminates(t *testing.T) {
	// 非 JPEG。
	if ts, _ := scanJPEGMarkers([]byte("PNG....")); ts != "" {
		t.Fatalf("非 JPEG 应无结果")
	}
	// SOI 后直接出现非 marker 字节。
	if ts, _ := scanJPEGMarkers([]byte{0xFF, 0xD8, 0x00, 0x01, 0x02, 0x03}); ts != "" {
		t.Fatalf("非 marker 字节应终止扫描")
	}
	// 段长越界。
	trunc := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0xFF, 0xFF}
	if ts, _ := scanJPEGMarkers(trunc); ts != "" {
		t.Fatalf("段长越界应终止扫描")
	}
}

func TestScanJPEGMarkers_APP1WithoutSignatureIsSkipped(t *testing.T) {
	// 第一个 APP1 无 Exif 签名，第二个才承载 EXIF。
	tiffBlock := buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:04:30 09:00:00")},
	})

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	var l [2]byte

	xmp := []byte("http://ns.adobe.com/xap/1.0/\x00")
	buf.Write([]byte{0xFF, 0xE1})
	binary.BigEndian.PutUint16(l[:], uint16(len(xmp)+2))
	buf.Write(l[:])
	buf.Write(xmp)

	payload := append([]byte("Exif\x00\x00"), tiffBlock...)
	buf.Write([]byte{0xFF, 0xE1})
	binary.BigEndian.PutUint16(l[:], uint16(len(payload)+2))
	buf.Write(l[:])
	buf.Write(payload)

	ts, _ := scanJPEGMarkers(buf.Bytes())
	if ts != "20210430_090000" {
		t.Fatalf("应跳过无签名的 APP1 继续扫描：%q", ts)
	}
}
