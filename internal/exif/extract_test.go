package exif

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/exifren/internal/domain"
)

// stubOracle 模拟运行时能力：列在 unsupported 里的扩展名不可解码。
type stubOracle struct {
	unsupported map[string]struct{}
}

func (o stubOracle) Decodable(ext string) bool {
	_, blocked := o.unsupported[ext]
	return !blocked
}

func newTestEngine() *Engine {
	return NewEngine(stubOracle{}, zerolog.Nop())
}

func photoFile(t *testing.T, dir, name string, data []byte) domain.PhotoFile {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	ext := filepath.Ext(name)
	return domain.PhotoFile{AbsPath: p, Name: name, Ext: ext, ExtRaw: ext}
}

func TestExtract_SuccessFromEXIF(t *testing.T) {
	dir := t.TempDir()
	jpg := buildJPEG(t, buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:04:30 09:00:00")},
		{tagModel, 2, asciiVal("Canon EOS 5D")},
	}))
	f := photoFile(t, dir, "a.jpg", jpg)

	out := newTestEngine().Extract(f)
	if !out.OK {
		t.Fatalf("期望成功，实际 %+v", out)
	}
	if out.Timestamp != "20210430_090000" {
		t.Fatalf("时间戳不符：%q", out.Timestamp)
	}
	if out.CameraModel != "CanonEOS5D" {
		t.Fatalf("机型不符：%q", out.CameraModel)
	}
	if out.BaseName != "20210430_090000_CanonEOS5D" {
		t.Fatalf("BaseName 不符：%q", out.BaseName)
	}
}

func TestExtract_ModelMissingFallsBackToUnknown(t *testing.T) {
	dir := t.TempDir()
	jpg := buildJPEG(t, buildTIFF(t, binary.BigEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:04:30 09:00:00")},
	}))
	f := photoFile(t, dir, "a.jpg", jpg)

	out := newTestEngine().Extract(f)
	if !out.OK || out.CameraModel != "Unknown" {
		t.Fatalf("机型缺失应回退为 Unknown：%+v", out)
	}
}

func TestExtract_UnsupportedContainerShortCircuits(t *testing.T) {
	dir := t.TempDir()
	// 内容无关紧要：门禁必须在读文件之前短路。
	f := photoFile(t, dir, "a.heic", []byte("whatever"))

	eng := NewEngine(stubOracle{unsupported: map[string]struct{}{".heic": {}}}, zerolog.Nop())
	out := eng.Extract(f)
	if out.OK || out.FailKind != domain.FailUnsupportedContainer {
		t.Fatalf("期望 unsupported_container：%+v", out)
	}
}

func TestExtract_ZeroLengthFileIsDecodeError(t *testing.T) {
	dir := t.TempDir()
	f := photoFile(t, dir, "a.jpg", nil)

	out := newTestEngine().Extract(f)
	if out.OK || out.FailKind != domain.FailDecodeOrRead {
		t.Fatalf("零长度文件期望 decode_failed：%+v", out)
	}
}

func TestExtract_MissingFileIsDecodeError(t *testing.T) {
	f := domain.PhotoFile{
		AbsPath: filepath.Join(t.TempDir(), "gone.jpg"),
		Name:    "gone.jpg", Ext: ".jpg", ExtRaw: ".jpg",
	}
	out := newTestEngine().Extract(f)
	if out.OK || out.FailKind != domain.FailDecodeOrRead {
		t.Fatalf("不可读文件期望 decode_failed：%+v", out)
	}
}

func TestExtract_GarbageBytesIsDecodeError(t *testing.T) {
	dir := t.TempDir()
	f := photoFile(t, dir, "a.jpg", []byte("definitely not an image"))

	out := newTestEngine().Extract(f)
	if out.OK || out.FailKind != domain.FailDecodeOrRead {
		t.Fatalf("不可解码字节期望 decode_failed：%+v", out)
	}
}

func TestExtract_ValidImageWithoutDateIsNoTimestamp(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("生成 PNG 失败：%v", err)
	}
	f := photoFile(t, dir, "a.png", buf.Bytes())

	out := newTestEngine().Extract(f)
	if out.OK || out.FailKind != domain.FailNoUsableTimestamp {
		t.Fatalf("无日期的合法图片期望 no_timestamp：%+v", out)
	}
}

func TestExtract_MalformedDateCarriesModelForward(t *testing.T) {
	dir := t.TempDir()
	jpg := buildJPEG(t, buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:99:99 10:00:00")},
		{tagModel, 2, asciiVal("Canon EOS 5D")},
	}))
	f := photoFile(t, dir, "a.jpg", jpg)

	out := newTestEngine().Extract(f)
	if out.OK {
		t.Fatalf("畸形时间绝不产出部分成功：%+v", out)
	}
	if out.FailKind != domain.FailNoUsableTimestamp {
		t.Fatalf("可解码但无可用时间应为 no_timestamp：%+v", out)
	}
	// 沿途捞到的机型要随失败结果透出（仅供展示）。
	if out.CameraModel != "CanonEOS5D" {
		t.Fatalf("机型应跨层携带：%+v", out)
	}
}

func TestExtract_SentinelZeroIsNotATimestamp(t *testing.T) {
	dir := t.TempDir()
	jpg := buildJPEG(t, buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("0000:00:00 00:00:00")},
	}))
	f := photoFile(t, dir, "a.jpg", jpg)

	out := newTestEngine().Extract(f)
	if out.OK || out.FailKind != domain.FailNoUsableTimestamp {
		t.Fatalf("全零哨兵值期望 no_timestamp：%+v", out)
	}
}

func TestPickTimestamp_PriorityOrder(t *testing.T) {
	// DateTimeOriginal 优先于 DateTime。
	ts, found := pickTimestamp(map[string]string{
		"DateTime":         "2021:05:01 10:00:00",
		"DateTimeOriginal": "2021:04:30 09:00:00",
	})
	if !found || ts != "20210430_090000" {
		t.Fatalf("应选 DateTimeOriginal：(%q,%v)", ts, found)
	}

	// 每层只认一个候选：最高优先级畸形 => 整层失败，
	// 绝不用低优先级 tag 顶替。
	ts, found = pickTimestamp(map[string]string{
		"DateTimeOriginal": "garbage",
		"DateTime":         "2021:05:01 10:00:00",
	})
	if !found || ts != "" {
		t.Fatalf("畸形候选应使整层失败而非降级：(%q,%v)", ts, found)
	}

	// 哨兵值不占候选位：跳到下一优先级。
	ts, found = pickTimestamp(map[string]string{
		"DateTimeOriginal": "0000:00:00 00:00:00",
		"DateTime":         "2021:05:01 10:00:00",
	})
	if !found || ts != "20210501_100000" {
		t.Fatalf("哨兵值应让位给下一优先级：(%q,%v)", ts, found)
	}

	if _, found = pickTimestamp(map[string]string{"Whatever": "2021:05:01 10:00:00"}); found {
		t.Fatalf("未知字段不应命中")
	}
}

func TestExtract_MalformedPriorityCandidateFailsNonJPEG(t *testing.T) {
	// 非 marker 分段容器没有手工兜底层：最高优先级候选畸形时，
	// 任何结构化层都不得用低优先级 tag 顶替，整体必须失败。
	dir := t.TempDir()
	tif := buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:99:99 10:00:00")},
		{tagDateTime, 2, asciiVal("2021:05:01 10:00:00")},
		{tagModel, 2, asciiVal("Canon EOS 5D")},
	})
	f := photoFile(t, dir, "a.tif", tif)

	out := newTestEngine().Extract(f)
	if out.OK {
		t.Fatalf("畸形的最高优先级候选不允许被低优先级时间顶替：%+v", out)
	}
	if out.FailKind != domain.FailNoUsableTimestamp {
		t.Fatalf("期望 no_timestamp：%+v", out)
	}
	if out.CameraModel != "CanonEOS5D" {
		t.Fatalf("机型应随失败结果透出：%+v", out)
	}
}

func TestExtract_MalformedPriorityCandidateRescuedByMarkerScan(t *testing.T) {
	// JPEG 是唯一有手工兜底层的容器：线性扫描按存储顺序逐个归一化，
	// 畸形候选跳过，后续合法时间仍可命中。
	dir := t.TempDir()
	jpg := buildJPEG(t, buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagDateTimeOriginal, 2, asciiVal("2021:99:99 10:00:00")},
		{tagDateTime, 2, asciiVal("2021:05:01 10:00:00")},
	}))
	f := photoFile(t, dir, "a.jpg", jpg)

	out := newTestEngine().Extract(f)
	if !out.OK || out.Timestamp != "20210501_100000" {
		t.Fatalf("手工层应命中存储顺序里的下一个合法时间：%+v", out)
	}
}

func TestExtract_PanicKeepsCarriedModel(t *testing.T) {
	dir := t.TempDir()
	jpg := buildJPEG(t, buildTIFF(t, binary.LittleEndian, []ifdEntry{
		{tagModel, 2, asciiVal("Canon EOS 5D")},
	}))
	f := photoFile(t, dir, "a.jpg", jpg)

	// 末尾追加一个必然 panic 的层：前面的层已捞到机型。
	eng := newTestEngine()
	eng.stages = append(eng.stages, stage{"boom", func(_ domain.PhotoFile, _ []byte, _ *probe) {
		panic("boom")
	}})

	out := eng.Extract(f)
	if out.OK || out.FailKind != domain.FailDecodeOrRead {
		t.Fatalf("panic 应折叠为 decode_failed：%+v", out)
	}
	if out.CameraModel != "CanonEOS5D" {
		t.Fatalf("panic 路径也要保留沿途机型：%+v", out)
	}
}
