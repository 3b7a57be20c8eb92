package planner

import (
	"fmt"
	"os"
	"path/filepath"
)

// claimed 集合由调用方持有并贯穿一个批次（arena 式），本包只读写传入的集合。

// Preview 在纯内存 claimed 集合内分配唯一文件名（不触碰文件系统）。
// 命名规则：base+ext；冲突则 base_1、base_2 … 递增到首个未被占用者。
func Preview(base, ext string, claimed map[string]struct{}) string {
	cand := base + ext
	if _, ok := claimed[cand]; !ok {
		return cand
	}
	for n := 1; ; n++ {
		cand = fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, ok := claimed[cand]; !ok {
			return cand
		}
	}
}

// Actual 与 Preview 同一套递增算法，但候选名还必须在 dir 的磁盘现状中
// 不存在：预览与执行之间文件系统可能已被外界改写（或本批次先前的
// rename 已落位同名文件）。双重校验是执行模式的正确性关键。
func Actual(base, ext, dir string, claimed map[string]struct{}) string {
	cand := base + ext
	if free(cand, dir, claimed) {
		return cand
	}
	for n := 1; ; n++ {
		cand = fmt.Sprintf("%s_%d%s", base, n, ext)
		if free(cand, dir, claimed) {
			return cand
		}
	}
}

func free(name, dir string, claimed map[string]struct{}) bool {
	if _, ok := claimed[name]; ok {
		return false
	}
	// stat 出错但不是“不存在”时按占用处理：宁可多加后缀，不可覆盖。
	_, err := os.Lstat(filepath.Join(dir, name))
	return os.IsNotExist(err)
}
