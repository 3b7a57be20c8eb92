package exif

import (
	"bytes"
	"encoding/binary"
)

// 手工二进制兜底：当所有结构化访问层都拿不到可用时间时，直接在 JPEG 的
// marker 段里找 APP1/EXIF，再按 TIFF 结构解析 IFD。只认 marker 分段格式；
// 其他容器依赖前面的结构化层命中。

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8 // start of image
	markerAPP0   = 0xE0
	markerAPP1   = 0xE1 // 通常承载 EXIF
	markerAPPF   = 0xEF
)

var exifSignature = []byte("Exif\x00\x00")

// IFD tag id（仅识别本引擎需要的五个）。
const (
	tagMake              = 271
	tagModel             = 272
	tagDateTime          = 306
	tagDateTimeOriginal  = 36867
	tagDateTimeDigitized = 36868
)

// scanJPEGMarkers 从头走一遍 marker 段，找到 APP1/EXIF 后交给 TIFF 解析。
//
// 终止条件：首两字节不是 SOI、遇到非 marker 字节、段长越界、或字节耗尽。
// 任何终止都只意味着“本层无结果”，不是错误。
func scanJPEGMarkers(data []byte) (ts, model string) {
	if len(data) < 2 || data[0] != markerPrefix || data[1] != markerSOI {
		return "", ""
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != markerPrefix {
			return "", ""
		}
		typ := data[pos+1]

		switch {
		case typ == markerAPP1:
			length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
			if length < 2 || pos+2+length > len(data) {
				return "", ""
			}
			payload := data[pos+4 : pos+2+length]
			if bytes.HasPrefix(payload, exifSignature) {
				return parseTIFF(payload[len(exifSignature):])
			}
			pos += 2 + length

		case typ == markerAPP0 || (typ >= 0xE2 && typ <= markerAPPF):
			// 其他 APP 段：按声明长度跳过。
			length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
			if length < 2 || pos+2+length > len(data) {
				return "", ""
			}
			pos += 2 + length

		default:
			return "", ""
		}
	}
	return "", ""
}

// parseTIFF 解析 TIFF 头：字节序判别（II/MM）、magic 42、首个 IFD 偏移。
func parseTIFF(b []byte) (ts, model string) {
	if len(b) < 8 {
		return "", ""
	}

	var bo binary.ByteOrder
	switch {
	case b[0] == 'I' && b[1] == 'I':
		bo = binary.LittleEndian
	case b[0] == 'M' && b[1] == 'M':
		bo = binary.BigEndian
	default:
		return "", ""
	}

	if bo.Uint16(b[2:4]) != 42 {
		return "", ""
	}
	return parseIFD(b, bo.Uint32(b[4:8]), bo)
}

// typeSize 给出 IFD 数据类型的单元字节数（未知类型按 1 处理）。
func typeSize(typ uint16) uint64 {
	switch typ {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		return 1
	case 3, 8: // SHORT, SSHORT
		return 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		return 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		return 8
	default:
		return 1
	}
}

// parseIFD 遍历一个 IFD 的全部 12 字节条目。
//
// 约束：
// - 时间 tag（306/36867/36868）按存储顺序先到先得，不做优先级重排
// - Model(272) 优先于 Make(271)，与存储顺序无关
// - 单个字段的越界只静默跳过该字段，不中断整个循环
func parseIFD(b []byte, offset uint32, bo binary.ByteOrder) (ts, model string) {
	off := int(offset)
	if off < 0 || off+2 > len(b) {
		return "", ""
	}

	n := int(bo.Uint16(b[off : off+2]))
	var makeText string

	for i := 0; i < n; i++ {
		ent := off + 2 + i*12
		if ent+12 > len(b) {
			continue
		}

		tag := bo.Uint16(b[ent : ent+2])
		switch tag {
		case tagDateTime, tagDateTimeOriginal, tagDateTimeDigitized:
			if ts != "" {
				continue
			}
			val, ok := entryValue(b, ent, bo)
			if !ok {
				continue
			}
			if c, okN := Normalize(decodeText(val)); okN {
				ts = c
			}

		case tagModel:
			val, ok := entryValue(b, ent, bo)
			if !ok {
				continue
			}
			if s := stripSpaces(decodeText(val)); s != "" {
				model = s
			}

		case tagMake:
			val, ok := entryValue(b, ent, bo)
			if !ok {
				continue
			}
			if s := stripSpaces(decodeText(val)); s != "" && makeText == "" {
				makeText = s
			}
		}
	}

	if model == "" {
		model = makeText
	}
	return ts, model
}

// entryValue 解出一个 IFD 条目的原始值字节：编码尺寸 ≤4 时取内联的
// 4 字节字段，否则把该字段当作 TIFF 块内偏移。任何越界返回 ok=false。
func entryValue(b []byte, ent int, bo binary.ByteOrder) ([]byte, bool) {
	typ := bo.Uint16(b[ent+2 : ent+4])
	count := bo.Uint32(b[ent+4 : ent+8])
	size := typeSize(typ) * uint64(count)

	if size == 0 {
		return nil, false
	}
	if size <= 4 {
		return b[ent+8 : ent+8+int(size)], true
	}

	voff := uint64(bo.Uint32(b[ent+8 : ent+12]))
	if voff+size > uint64(len(b)) {
		return nil, false
	}
	return b[voff : voff+size], true
}
