package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestTask_PollAndWait(t *testing.T) {
	g := &errgroup.Group{}
	release := make(chan struct{})

	task, err := Spawn(context.Background(), g, func(ctx context.Context) (int, error) {
		<-release
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, done := task.Poll(); done {
		t.Fatal("task should still be running")
	}

	close(release)
	v, err := task.Wait(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("Wait() = %d, %v", v, err)
	}

	// 结果只投递一次，之后重复读取仍然可用
	for i := 0; i < 2; i++ {
		res, done := task.Poll()
		if !done || res.Value != 42 || res.Err != nil {
			t.Errorf("Poll #%d = %+v, %v", i, res, done)
		}
	}
	g.Wait()
}

func TestTask_Error(t *testing.T) {
	g := &errgroup.Group{}
	boom := errors.New("boom")

	task, err := Spawn(context.Background(), g, func(ctx context.Context) (string, error) {
		return "", boom
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := task.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Wait() err = %v", err)
	}
	// 任务错误不进入 errgroup
	if err := g.Wait(); err != nil {
		t.Errorf("group.Wait() = %v", err)
	}
}

func TestTask_WaitCanceled(t *testing.T) {
	g := &errgroup.Group{}
	release := make(chan struct{})
	defer func() {
		close(release)
		g.Wait()
	}()

	task, _ := Spawn(context.Background(), g, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() err = %v", err)
	}
}

func TestSpawn_Limit(t *testing.T) {
	g := &errgroup.Group{}
	g.SetLimit(1)
	release := make(chan struct{})

	first, err := Spawn(context.Background(), g, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Spawn(context.Background(), g, func(ctx context.Context) (int, error) {
		return 2, nil
	}); !errors.Is(err, ErrTooManyTasks) {
		t.Errorf("expected ErrTooManyTasks, got %v", err)
	}

	close(release)
	first.Wait(context.Background())
	g.Wait()
}
