package imgx

import (
	"bytes"
	"image"
	"strings"

	// 注册标准库与 x/image 的解码器，供 Sniffable 使用。
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Family 标识容器族。族决定解码路径与 fallback 资格：
// 只有 marker 分段格式（JPEG）允许手工二进制兜底。
type Family int

const (
	FamilyUnknown Family = iota
	FamilyJPEG
	FamilyTIFF // 含 TIFF 结构的相机 RAW
	FamilyHEIC
	FamilyPNG
	FamilyGIF
	FamilyBMP
	FamilyWebP
)

// FamilyOf 按扩展名（小写、含点）归类容器族。
func FamilyOf(ext string) Family {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return FamilyJPEG
	case ".tiff", ".tif", ".cr2", ".nef", ".arw", ".dng", ".orf", ".rw2", ".pef":
		return FamilyTIFF
	case ".heic", ".heif":
		return FamilyHEIC
	case ".png":
		return FamilyPNG
	case ".gif":
		return FamilyGIF
	case ".bmp":
		return FamilyBMP
	case ".webp":
		return FamilyWebP
	default:
		return FamilyUnknown
	}
}

// MarkerSegmented 回答该扩展名的容器是否是 marker 分段格式。
func MarkerSegmented(ext string) bool {
	return FamilyOf(ext) == FamilyJPEG
}

// Oracle 回答“该容器族在当前运行时能否打开读取元数据”。
//
// 仅 HEIC/HEIF 依赖可选能力（imagemeta 的 BMFF 解析路径）；
// 其余族随二进制常驻。测试可以构造 HEIC=false 模拟能力缺失。
type Oracle struct {
	HEIC bool
}

// DefaultOracle 返回当前构建的真实能力：imagemeta 随二进制编译，HEIC 可用。
func DefaultOracle() Oracle {
	return Oracle{HEIC: true}
}

// Decodable 按扩展名回答可解码性。未知扩展名一律视为不可解码。
func (o Oracle) Decodable(ext string) bool {
	switch FamilyOf(ext) {
	case FamilyHEIC:
		return o.HEIC
	case FamilyUnknown:
		return false
	default:
		return true
	}
}

// Sniffable 回答这段字节能否被任一已注册解码器识别为图片。
// 提取全链无果时，用它区分 no_timestamp（是图片、没日期）与
// decode_failed（根本不是可解码的图片）。
func Sniffable(data []byte) bool {
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil
}
