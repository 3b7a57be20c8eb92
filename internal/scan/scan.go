package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/exifren/internal/domain"
)

// DefaultExtensions 返回默认识别的图片扩展名（小写、含点）。
// 覆盖常见容器与主流相机 RAW；HEIC/HEIF 是否可解码由 imgx 的 oracle 决定，
// 扫描阶段不做该判断。
func DefaultExtensions() []string {
	return []string{
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp",
		".cr2", ".nef", ".arw", ".dng", ".orf", ".rw2", ".pef",
		".heic", ".heif",
	}
}

// ExtensionSet 把扩展名列表规整为小写、带点的集合。
func ExtensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

// ScanPhotos 列出 dir 下（单层，不递归）扩展名命中 exts 的图片文件。
//
// 规则（硬约束）：
// - 只做 ReadDir，不读文件内容
// - 扩展名匹配用小写；输出的 ExtRaw 保留原始大小写
// - 结果按 AbsPath 做大小写敏感字典序稳定排序；该顺序贯穿后续所有阶段
func ScanPhotos(dir string, exts map[string]struct{}) ([]domain.PhotoFile, error) {
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	files := make([]domain.PhotoFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		extRaw := filepath.Ext(name)
		ext := strings.ToLower(extRaw)
		if _, ok := exts[ext]; !ok {
			continue
		}
		files = append(files, domain.PhotoFile{
			AbsPath: filepath.Join(abs, name),
			Name:    name,
			Ext:     ext,
			ExtRaw:  extRaw,
		})
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].AbsPath < files[j].AbsPath })
	return files, nil
}
