package async

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Outcome 单个任务的结果，Index 与输入顺序一致
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

// Fulfilled 任务成功完成
func (o Outcome[T]) Fulfilled() bool { return o.Err == nil }

// Task 待执行任务
type Task[T any] func(ctx context.Context) (T, error)

// SettleAll 以最多 limit 个并发执行全部任务并等待全部结束
// 单个任务失败或 panic 只记录在自己的 Outcome 里，不取消其他任务；limit <= 0 表示不限
func SettleAll[T any](ctx context.Context, limit int, tasks []Task[T]) []Outcome[T] {
	results := make([]Outcome[T], len(tasks))
	p := pool.New()
	if limit > 0 {
		p = p.WithMaxGoroutines(limit)
	}

	for i, task := range tasks {
		p.Go(func() {
			results[i] = run(ctx, i, task)
		})
	}
	p.Wait()
	return results
}

func run[T any](ctx context.Context, i int, task Task[T]) (out Outcome[T]) {
	out.Index = i
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	var pc panics.Catcher
	pc.Try(func() {
		out.Value, out.Err = task(ctx)
	})
	if r := pc.Recovered(); r != nil {
		out.Err = fmt.Errorf("任务 panic: %w", r.AsError())
	}
	return out
}
