package domain

// RenamePlan 规划一次同目录内的重命名（只描述意图；真正执行时目标名会
// 按“claimed ∪ 磁盘现状”重新结算）。
type RenamePlan struct {
	SrcAbs   string
	Dir      string
	BaseName string // "{timestamp}_{model}"
	Ext      string // 原始大小写扩展名
	Target   string // 规划时刻在本批次 claimed 集内唯一的文件名
}

// RenameOutcome 是单条计划的终态：实际使用的目标路径可能与计划不同
//（规划与执行之间文件系统可能已被改写）。
type RenameOutcome struct {
	SrcAbs string
	DstAbs string
	OK     bool
	ErrMsg string // OK=false 时非空
}
