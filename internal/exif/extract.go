package exif

import (
	"bytes"
	"os"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/John-Robertt/exifren/internal/domain"
	"github.com/John-Robertt/exifren/internal/infra/imgx"
)

// Oracle 按扩展名回答“该容器在当前运行时能否打开读取元数据”。
// 真实实现见 imgx.Oracle；接口化是为了让测试模拟能力缺失。
type Oracle interface {
	Decodable(ext string) bool
}

// tagPriority 是结构化访问层的时间 tag 优先级（严格有序，首个可用者胜）。
// CreateDate/ModifyDate 不是标准 EXIF 字段名，但个别固件会写出，保留兜底。
var tagPriority = []string{
	"DateTimeOriginal",
	"DateTime",
	"DateTimeDigitized",
	"CreateDate",
	"ModifyDate",
}

// Engine 对单个文件执行有序 fallback 链：
// 容器门禁 → goexif 结构化 → imagemeta 备用解码 → goexif 全量遍历 →
// 手工二进制扫描。每层只在上一层没有拿到可用时间时才尝试；
// 沿途发现的机型文本跨层携带。
type Engine struct {
	oracle Oracle
	log    zerolog.Logger
	stages []stage
}

type stage struct {
	name string
	fn   func(f domain.PhotoFile, data []byte, p *probe)
}

// probe 在各层之间携带中间结果：timestamp 找到即停，model 先到先得。
type probe struct {
	timestamp string // canonical
	model     string
	decoded   bool // 任一结构化解码器成功打开过该文件
	badTime   bool // 结构化层已确认：最高优先级候选存在但畸形
}

// NewEngine 构造引擎并注册厂商 MakerNote 解析器（扩大 goexif 的覆盖面）。
func NewEngine(oracle Oracle, log zerolog.Logger) *Engine {
	exif.RegisterParsers(mknote.All...)

	e := &Engine{oracle: oracle, log: log}
	e.stages = []stage{
		{"goexif", e.goexifStage},
		{"imagemeta", e.imagemetaStage},
		{"goexif-walk", e.goexifWalkStage},
		{"raw-jpeg", e.rawJPEGStage},
	}
	return e
}

// Extract 对单个文件执行完整 fallback 链。
//
// 边界契约：该函数永不 panic、永不返回 error——打开/解码过程中的一切
// 意外（包括解码库 panic）都折叠为 Failure(decode_failed)，单个坏文件
// 不允许中断批次。
func (e *Engine) Extract(f domain.PhotoFile) (out domain.ExtractionOutcome) {
	var p probe
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("file", f.Name).Any("panic", r).
				Msg("解码过程 panic，降级为 decode_failed")
			// 沿途捞到的机型即使在 panic 路径也要透出。
			out = domain.Failure(domain.FailDecodeOrRead, p.model)
		}
	}()

	// 容器门禁：运行时不具备解码能力的族直接短路，不碰文件内容。
	if !e.oracle.Decodable(f.Ext) {
		return domain.Failure(domain.FailUnsupportedContainer, "")
	}

	data, err := os.ReadFile(f.AbsPath)
	if err != nil || len(data) == 0 {
		return domain.Failure(domain.FailDecodeOrRead, "")
	}

	for _, st := range e.stages {
		st.fn(f, data, &p)
		if p.timestamp != "" {
			e.log.Debug().Str("file", f.Name).Str("stage", st.name).
				Str("timestamp", p.timestamp).Msg("提取命中")
			return domain.Success(p.timestamp, modelOrUnknown(p.model))
		}
	}

	// 全链无果：能被任一解码器打开/嗅探的归为 no_timestamp，
	// 否则这段字节根本不是可解码的图片。
	if !p.decoded && !imgx.Sniffable(data) {
		return domain.Failure(domain.FailDecodeOrRead, p.model)
	}
	return domain.Failure(domain.FailNoUsableTimestamp, p.model)
}

// goexifStage 是首选结构化访问层：按 tagPriority 逐个取 tag。
func (e *Engine) goexifStage(_ domain.PhotoFile, data []byte, p *probe) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	p.decoded = true

	if p.model == "" {
		p.model = goexifField(x, exif.Model)
		if p.model == "" {
			p.model = goexifField(x, exif.Make)
		}
	}

	// 每层只认一个候选：首个存在且非哨兵的最高优先级 tag。
	// 候选畸形 => 整层失败，由后续层兜底；不允许用低优先级 tag 顶替。
	for _, name := range tagPriority {
		tag, err := x.Get(exif.FieldName(name))
		if err != nil {
			continue
		}
		s := tagText(tag)
		if s == "" || s == sentinelZero {
			continue
		}
		if ts, ok := Normalize(s); ok {
			p.timestamp = ts
		} else {
			p.badTime = true
		}
		return
	}
}

// imagemetaStage 是备用解码路径（独立实现；也是 HEIC 的唯一纯 Go 通道）。
// 时间取值顺序与该库暴露的字段一致：DateTimeOriginal > CreateDate > ModifyDate。
func (e *Engine) imagemetaStage(_ domain.PhotoFile, data []byte, p *probe) {
	m, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	p.decoded = true

	if p.model == "" {
		p.model = stripSpaces(strings.TrimSpace(m.Model))
		if p.model == "" {
			p.model = stripSpaces(strings.TrimSpace(m.Make))
		}
	}

	// 上一层已确认最高优先级候选畸形：本库把解析失败的时间折叠为零值，
	// 区分不了“缺失”与“畸形”，放行会用低优先级字段顶替畸形候选。
	if p.badTime {
		return
	}

	if t := m.DateTimeOriginal(); !t.IsZero() {
		p.timestamp = t.Format(canonicalLayout)
		return
	}
	if t := m.CreateDate(); !t.IsZero() {
		p.timestamp = t.Format(canonicalLayout)
		return
	}
	if t := m.ModifyDate(); !t.IsZero() {
		p.timestamp = t.Format(canonicalLayout)
	}
}

// goexifWalkStage 直接枚举解码结果里的全部 tag（最底层的结构化访问），
// 收集后仍按 tagPriority 选取。
func (e *Engine) goexifWalkStage(_ domain.PhotoFile, data []byte, p *probe) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	p.decoded = true

	w := &fieldCollector{fields: make(map[string]string, 8)}
	_ = x.Walk(w)

	if ts, found := pickTimestamp(w.fields); found {
		if ts != "" {
			p.timestamp = ts
		} else {
			p.badTime = true
		}
	}
	if p.model == "" {
		p.model = w.model
		if p.model == "" {
			p.model = w.make
		}
	}
}

// rawJPEGStage 是最后的手工兜底，仅对 marker 分段格式生效。
func (e *Engine) rawJPEGStage(f domain.PhotoFile, data []byte, p *probe) {
	if !imgx.MarkerSegmented(f.Ext) {
		return
	}
	ts, model := scanJPEGMarkers(data)
	if ts != "" {
		p.timestamp = ts
	}
	if p.model == "" {
		p.model = model
	}
}

// fieldCollector 收集一次 Walk 里的时间字段与机型字段。
type fieldCollector struct {
	fields map[string]string
	model  string
	make   string
}

func (w *fieldCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	switch name {
	case exif.Model:
		if s := stripSpaces(tagText(tag)); s != "" {
			w.model = s
		}
	case exif.Make:
		if s := stripSpaces(tagText(tag)); s != "" && w.make == "" {
			w.make = s
		}
	default:
		n := string(name)
		if _, ok := w.fields[n]; ok {
			return nil // 同名 tag 首个出现者胜
		}
		for _, want := range tagPriority {
			if n == want {
				w.fields[n] = tagText(tag)
				break
			}
		}
	}
	return nil
}

// pickTimestamp 按 tagPriority 选出首个存在且非哨兵的候选并归一化。
// found 表示存在这样的候选；found 且 ts 为空表示候选畸形——整层失败，
// 不降级到更低优先级的 tag（手工 JPEG 层的线性扫描是唯一例外）。
func pickTimestamp(fields map[string]string) (ts string, found bool) {
	for _, name := range tagPriority {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		s := strings.TrimSpace(raw)
		if s == "" || s == sentinelZero {
			continue
		}
		ts, _ = Normalize(s)
		return ts, true
	}
	return "", false
}

// goexifField 取出一个字符串型 tag 并做机型文本清洗。
func goexifField(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	return stripSpaces(tagText(tag))
}

// tagText 把 tag 值转成干净文本：优先 StringVal；失败则按原始字节
// 走 UTF-8 容错解码。
func tagText(tag *tiff.Tag) string {
	if s, err := tag.StringVal(); err == nil {
		return strings.TrimSpace(strings.Trim(s, "\x00"))
	}
	return decodeText(tag.Val)
}

// decodeText 把可能是原始字节序列的值转成文本：
// 非法 UTF-8 序列丢弃，NUL 与首尾空白剔除。
func decodeText(b []byte) string {
	s := strings.ToValidUTF8(string(b), "")
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

// stripSpaces 剔除机型文本里的全部空格（机型参与文件名拼接）。
func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// modelOrUnknown 是机型缺失时参与命名的占位值。
func modelOrUnknown(model string) string {
	if model == "" {
		return "Unknown"
	}
	return model
}
