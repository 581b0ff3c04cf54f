//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/busrelay/api"
)

const maxEvents = 128

// epollPoller implements api.Poller with level-triggered epoll and an
// eventfd used to interrupt a blocked wait.
type epollPoller struct {
	epfd   int
	wakefd int
	log    zerolog.Logger

	mu        sync.Mutex
	callbacks map[int]api.FDCallback
	events    [maxEvents]unix.EpollEvent
}

// NewPoller creates the platform readiness poller.
func NewPoller(log zerolog.Logger) (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epollPoller{
		epfd:      epfd,
		wakefd:    wakefd,
		log:       log,
		callbacks: make(map[int]api.FDCallback),
	}, nil
}

// Register adds fd to the epoll interest set for readability.
func (p *epollPoller) Register(fd int, cb api.FDCallback) error {
	if fd < 0 || cb == nil {
		return api.ErrInvalidArgument
	}
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	op := unix.EPOLL_CTL_ADD
	if _, ok := p.callbacks[fd]; ok {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	p.callbacks[fd] = cb
	return nil
}

// Unregister removes fd from the epoll watch list.
func (p *epollPoller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.callbacks[fd]; !ok {
		return nil
	}
	delete(p.callbacks, fd)
	// The descriptor may already be closed, which removes it from epoll.
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.EBADF && err != unix.ENOENT {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Poll blocks and waits for events on registered file descriptors.
// timeoutMs < 0 means block infinitely.
func (p *epollPoller) Poll(timeoutMs int) error {
	var deadline time.Time
	if timeoutMs >= 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}
	timeout := timeoutMs
	for {
		n, err := unix.EpollWait(p.epfd, p.events[:], timeout)
		if err == unix.EINTR {
			if timeoutMs >= 0 {
				timeout = int(time.Until(deadline) / time.Millisecond)
				if timeout < 0 {
					timeout = 0
				}
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll wait: %w", err)
		}
		p.dispatch(p.events[:n])
		return nil
	}
}

func (p *epollPoller) dispatch(ready []unix.EpollEvent) {
	for i := range ready {
		fd := int(ready[i].Fd)
		if fd == p.wakefd {
			p.drainWakeup()
			continue
		}
		p.mu.Lock()
		cb, ok := p.callbacks[fd]
		p.mu.Unlock()
		if !ok {
			// unregistered by an earlier callback in this batch
			continue
		}
		p.invoke(fd, cb)
	}
}

func (p *epollPoller) invoke(fd int, cb api.FDCallback) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("fd", fd).Interface("panic", r).Msg("readable callback panicked")
		}
	}()
	cb(fd)
}

func (p *epollPoller) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

// Wakeup makes the eventfd readable so a blocked Poll returns.
func (p *epollPoller) Wakeup() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(p.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close releases the epoll and eventfd descriptors.
func (p *epollPoller) Close() error {
	p.mu.Lock()
	p.callbacks = make(map[int]api.FDCallback)
	p.mu.Unlock()
	err := unix.Close(p.wakefd)
	if cerr := unix.Close(p.epfd); err == nil {
		err = cerr
	}
	return err
}
