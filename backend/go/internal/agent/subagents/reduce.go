package subagents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/pkg/textsplit"
)

const (
	minChunkTokens     = 100
	minMeaningfulRunes = 10
)

// mapReduce 把数据切成分片逐片分析，再把分片结果合并为一份报告。
// 分片分析可以并行，进度事件总是在当前 goroutine 中按分片顺序推送。
func (a *DataAnalyzer) mapReduce(ctx context.Context, query, template string, chunks []string) (string, error) {
	opts := a.Options()
	cfg := a.deps.Config

	size := opts.SplitChunkSize - a.deps.countTokens(template)
	if size < minChunkTokens {
		size = minChunkTokens
	}
	splitter := textsplit.New(a.deps.encoder(), size, opts.SplitChunkOverlap)

	var pieces []string
	for _, c := range chunks {
		for _, p := range splitter.Split(c) {
			if meaningful(p) {
				pieces = append(pieces, p)
			}
		}
	}
	total := len(pieces)
	if total == 0 {
		return "", nil
	}
	a.AddLog("数据分片", fmt.Sprintf("共 %d 个分片", total))

	results := make([]string, total)
	done := make([]chan struct{}, total)
	for i := range done {
		done[i] = make(chan struct{})
	}

	analyse := func(gctx context.Context, i int) error {
		defer close(done[i])
		msgs := agent.HistoryMessages(fill(template, map[string]string{"analysis_data": pieces[i]}), nil, "", query)
		out, err := a.Invoke(gctx, msgs, fmt.Sprintf("分片分析 %d/%d", i+1, total))
		if err != nil {
			if errors.Is(err, agent.ErrInterrupted) {
				return err
			}
			results[i] = fmt.Sprintf("Chunk %d processing failed: %v", i+1, err)
			return nil
		}
		results[i] = out
		return nil
	}

	// 并行度为 1 时等价于顺序分析
	workers := 1
	if cfg.SplitUseParallel && cfg.SplitParallelMaxWorkers > 0 {
		workers = cfg.SplitParallelMaxWorkers
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i := 0; i < total; i++ {
			i := i
			g.Go(func() error { return analyse(gctx, i) })
		}
	}()
	stop := func(err error) (string, error) {
		cancel()
		<-dispatched
		_ = g.Wait()
		return "", err
	}

	for i := 0; i < total; i++ {
		<-done[i]
		if err := a.CheckInterruption(); err != nil {
			return stop(err)
		}
		if err := a.Emit(&models.Event{
			Type:       models.EventStep,
			TypeName:   models.StepExecute,
			Name:       a.Name() + "_step",
			Status:     models.StatusRunning,
			ChunkIndex: i + 1,
			ChunkTotal: total,
			Message:    fmt.Sprintf("已完成第%d/%d个数据分片分析", i+1, total),
			Content:    results[i],
		}); err != nil {
			return stop(err)
		}
	}
	<-dispatched
	if err := g.Wait(); err != nil {
		return "", err
	}

	if total == 1 {
		return results[0], nil
	}
	var partials strings.Builder
	for i, r := range results {
		fmt.Fprintf(&partials, "### 分片 %d\n%s\n\n", i+1, r)
	}
	msgs := agent.HistoryMessages(fill(reducePrompt, map[string]string{"partials": partials.String()}), nil, "", query)
	return a.Invoke(ctx, msgs, "分片结果合并")
}

// meaningful 报告分片中是否有足够的有效字符，表格分隔符与空白不计。
func meaningful(s string) bool {
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune("|-`:", r) {
			continue
		}
		n++
		if n >= minMeaningfulRunes {
			return true
		}
	}
	return false
}
