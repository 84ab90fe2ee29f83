package main

import (
	"context"
)

// pool runs works on goroutines that stay around while there is work.
type pool struct {
	works chan chan func(context.Context)
}

func newPool(idle int) *pool {
	return &pool{works: make(chan chan func(context.Context), idle)}
}

// enqueue runs work on an idle worker, or on a new one if none is idle.
func (p *pool) enqueue(ctx context.Context, work func(context.Context)) {
	var w chan func(context.Context)
	select {
	case w = <-p.works:
	default:
		w = make(chan func(context.Context), 1)
		go worker(ctx, p.works, w)
	}
	select {
	case <-ctx.Done():
		return
	case w <- work:
	}
}

// worker runs works for a while. The provided context is passed to each work.
func worker(ctx context.Context, works chan chan func(context.Context), ch chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case work := <-ch:
			work(ctx)
			// Return to the pool if it has room. Otherwise, we're done.
			select {
			case works <- ch:
			default:
				return
			}
		}
	}
}
