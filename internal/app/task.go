package app

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrTooManyTasks 表示后台任务数已达上限。
var ErrTooManyTasks = errors.New("后台任务过多，请稍后再试")

// Result 是任务的返回值。
type Result[T any] struct {
	Value T
	Err   error
}

// Task 是一次后台调用，结果通过容量为 1 的通道只投递一次。
type Task[T any] struct {
	ch   chan Result[T]
	done bool
	res  Result[T]
}

// Spawn 在 group 中启动 fn。group 达到并发上限时不阻塞，直接返回 ErrTooManyTasks。
func Spawn[T any](ctx context.Context, g *errgroup.Group, fn func(ctx context.Context) (T, error)) (*Task[T], error) {
	t := &Task[T]{ch: make(chan Result[T], 1)}
	ok := g.TryGo(func() error {
		v, err := fn(ctx)
		t.ch <- Result[T]{Value: v, Err: err}
		// 任务错误通过 Poll 交给调用方，不让 errgroup 记录
		return nil
	})
	if !ok {
		return nil, ErrTooManyTasks
	}
	return t, nil
}

// Poll 非阻塞地检查任务是否完成。完成后重复调用返回同样的结果。
func (t *Task[T]) Poll() (Result[T], bool) {
	if !t.done {
		select {
		case r := <-t.ch:
			t.res = r
			t.done = true
		default:
			return Result[T]{}, false
		}
	}
	return t.res, true
}

// Wait 阻塞直到任务完成或 ctx 被取消。
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	if !t.done {
		select {
		case r := <-t.ch:
			t.res = r
			t.done = true
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
	return t.res.Value, t.res.Err
}
