package domain

// PhotoFile 描述一次文件夹选择得到的图片文件（只做 ReadDir，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Ext 为小写，仅用于匹配；ExtRaw 保留原始大小写，用于输出文件名
// - 列表一经捕获即不可变，直到重新选择文件夹
type PhotoFile struct {
	AbsPath string
	Name    string // 原文件名（含扩展名）
	Ext     string // ".jpg"
	ExtRaw  string // ".JPG"
}
