package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/John-Robertt/exifren/internal/app/run"
	"github.com/John-Robertt/exifren/internal/config"
	"github.com/John-Robertt/exifren/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 进度行按时间间隔节流，最后一条（current==total）必打
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	lastPrinted time.Time

	throttle time.Duration
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w, throttle: 200 * time.Millisecond}
}

// Start 打印生效配置的头部（不属于 Observer 契约，由 main 在扫描前调用）。
func (p *progressUI) Start(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := "dry-run"
	modeHint := " (只输出计划，不改写文件)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] exifren run (%s)\n", time.Now().Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	if len(eff.Extensions) > 0 {
		fmt.Fprintf(p.w, "  extensions: %v\n", eff.Extensions)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnScanProgress(current, total int) {
	p.progressLine("扫描", current, total)
}

func (p *progressUI) OnScanFinished(results []run.FileOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ok, fail int
	byKind := map[string]int{}
	for _, r := range results {
		if r.Outcome.OK {
			ok++
		} else {
			fail++
			byKind[r.Outcome.FailKind]++
		}
	}

	fmt.Fprintf(p.w, "扫描完成: files=%d 成功=%d 失败=%d\n", len(results), ok, fail)
	if fail > 0 {
		fmt.Fprintf(p.w, "  失败分布: %s=%d %s=%d %s=%d\n",
			domain.FailNoUsableTimestamp, byKind[domain.FailNoUsableTimestamp],
			domain.FailDecodeOrRead, byKind[domain.FailDecodeOrRead],
			domain.FailUnsupportedContainer, byKind[domain.FailUnsupportedContainer],
		)
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnRenameProgress(current, total int) {
	p.progressLine("重命名", current, total)
}

func (p *progressUI) OnRenameFinished(success, failure int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "重命名完成: 成功=%d 失败=%d\n", success, failure)
	p.lastPrinted = time.Now()
}

func (p *progressUI) progressLine(phase string, current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if current != total && now.Sub(p.lastPrinted) < p.throttle {
		return
	}
	fmt.Fprintf(p.w, "%s: %d/%d\n", phase, current, total)
	p.lastPrinted = now
}
