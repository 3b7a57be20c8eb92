package run

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/exifren/internal/app/planner"
	"github.com/John-Robertt/exifren/internal/domain"
	"github.com/John-Robertt/exifren/internal/scan"
)

// State 是一次批处理的生命周期状态。合法迁移：
//
//	Idle → Scanning → ScanComplete → Renaming → RenameDone
//
// ScanComplete/RenameDone 允许重新进入 Scanning（重扫），但 Rename 在同一次
// 文件夹选择内至多成功进入一次（见 renamed 闩锁）。
type State int

const (
	StateIdle State = iota
	StateScanning
	StateScanComplete
	StateRenaming
	StateRenameDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateScanComplete:
		return "scan_complete"
	case StateRenaming:
		return "renaming"
	case StateRenameDone:
		return "rename_done"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy 表示另一个阶段正在进行（Scanning/Renaming 期间拒绝并发进入）。
	ErrBusy = errors.New("上一阶段尚未结束")
	// ErrNoFolder 表示尚未 SelectFolder。
	ErrNoFolder = errors.New("尚未选择文件夹")
	// ErrNotScanned 表示扫描尚未完成，无法重命名。
	ErrNotScanned = errors.New("尚未完成扫描")
	// ErrAlreadyRenamed 表示本次文件夹选择内已执行过重命名。
	ErrAlreadyRenamed = errors.New("本批次已执行过重命名")
	// ErrNoRenamable 表示扫描结果中没有任何提取成功的文件。
	ErrNoRenamable = errors.New("没有可重命名的文件")
)

// Extractor 抽象单文件提取；生产实现是 exif.Engine。
type Extractor interface {
	Extract(f domain.PhotoFile) domain.ExtractionOutcome
}

// FileOutcome 是扫描阶段单个文件的一条结果。
// Planned 仅在提取成功时非空：本批次 claimed 集内唯一的预览文件名。
type FileOutcome struct {
	File    domain.PhotoFile
	Outcome domain.ExtractionOutcome
	Planned string
}

// Summary 是一次重命名执行的汇总；Outcomes 与计划顺序一一对应。
type Summary struct {
	Success  int
	Failure  int
	Outcomes []domain.RenameOutcome
}

// Batch 是批处理状态机。所有公开方法并发安全；
// Scan/Rename 的重活在锁外进行，锁只保护状态迁移与结果快照。
type Batch struct {
	mu        sync.Mutex
	extractor Extractor
	obs       Observer
	log       zerolog.Logger

	dir     string
	files   []domain.PhotoFile
	state   State
	renamed bool
	results []FileOutcome
}

func NewBatch(ex Extractor, obs Observer, log zerolog.Logger) *Batch {
	return &Batch{extractor: ex, obs: obs, log: log}
}

// State 返回当前状态（快照）。
func (b *Batch) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Results 返回最近一次扫描的结果快照（未扫描时为 nil）。
func (b *Batch) Results() []FileOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results
}

// SelectFolder 选择目标文件夹并捕获文件列表（只做 ReadDir，不读内容）。
// 无论之前处于什么终态，成功选择都会复位状态与重命名闩锁。
func (b *Batch) SelectFolder(dir string, exts map[string]struct{}) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateScanning || b.state == StateRenaming {
		return 0, ErrBusy
	}

	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return 0, err
	}
	files, err := scan.ScanPhotos(abs, exts)
	if err != nil {
		return 0, err
	}

	b.dir = abs
	b.files = files
	b.state = StateIdle
	b.renamed = false
	b.results = nil

	b.log.Info().Str("dir", abs).Int("files", len(files)).Msg("已选择文件夹")
	return len(files), nil
}

// Scan 按捕获顺序逐个提取元数据并分配预览名（纯内存 claimed 集合）。
//
// - 单个文件失败只记为该条目的失败，不中断整体
// - ctx 取消在文件边界检查：已完成的条目丢弃，状态回滚到进入前
// - ScanComplete/RenameDone 允许重扫；重命名闩锁不因重扫复位
func (b *Batch) Scan(ctx context.Context) ([]FileOutcome, error) {
	b.mu.Lock()
	if b.state == StateScanning || b.state == StateRenaming {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	if b.dir == "" {
		b.mu.Unlock()
		return nil, ErrNoFolder
	}
	prev := b.state
	b.state = StateScanning
	files := b.files
	b.mu.Unlock()

	claimed := make(map[string]struct{}, len(files))
	results := make([]FileOutcome, 0, len(files))
	for i := range files {
		if err := ctx.Err(); err != nil {
			b.mu.Lock()
			b.state = prev
			b.mu.Unlock()
			return nil, err
		}

		f := files[i]
		out := b.extractor.Extract(f)
		fo := FileOutcome{File: f, Outcome: out}
		if out.OK {
			name := planner.Preview(out.BaseName, f.ExtRaw, claimed)
			claimed[name] = struct{}{}
			fo.Planned = name
			b.log.Debug().Str("file", f.Name).Str("planned", name).Msg("提取成功")
		} else {
			b.log.Debug().Str("file", f.Name).Str("fail_kind", out.FailKind).Msg("提取失败")
		}
		results = append(results, fo)

		if b.obs != nil {
			b.obs.OnScanProgress(i+1, len(files))
		}
	}

	b.mu.Lock()
	b.results = results
	b.state = StateScanComplete
	b.mu.Unlock()

	if b.obs != nil {
		b.obs.OnScanFinished(results)
	}
	return results, nil
}

// Rename 执行最近一次扫描产出的计划。每次文件夹选择内至多执行一次；
// 进入执行即落下闩锁（部分失败也不允许重试，避免双重重命名）。
func (b *Batch) Rename(ctx context.Context) (Summary, error) {
	b.mu.Lock()
	if b.state == StateScanning || b.state == StateRenaming {
		b.mu.Unlock()
		return Summary{}, ErrBusy
	}
	if b.state == StateIdle {
		b.mu.Unlock()
		return Summary{}, ErrNotScanned
	}
	if b.renamed {
		b.mu.Unlock()
		return Summary{}, ErrAlreadyRenamed
	}

	plans := make([]domain.RenamePlan, 0, len(b.results))
	for _, fo := range b.results {
		if !fo.Outcome.OK {
			continue
		}
		plans = append(plans, domain.RenamePlan{
			SrcAbs:   fo.File.AbsPath,
			Dir:      b.dir,
			BaseName: fo.Outcome.BaseName,
			Ext:      fo.File.ExtRaw,
			Target:   fo.Planned,
		})
	}
	if len(plans) == 0 {
		b.mu.Unlock()
		return Summary{}, ErrNoRenamable
	}

	b.renamed = true
	b.state = StateRenaming
	b.mu.Unlock()

	ok, fail, outs := executeRenames(ctx, plans, b.obs, b.log)

	b.mu.Lock()
	b.state = StateRenameDone
	b.mu.Unlock()

	if b.obs != nil {
		b.obs.OnRenameFinished(ok, fail)
	}
	return Summary{Success: ok, Failure: fail, Outcomes: outs}, nil
}
