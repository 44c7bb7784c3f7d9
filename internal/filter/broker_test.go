package filter

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/dirfilter/internal/domain"
	"github.com/brianly1003/dirfilter/internal/testutil"
)

type recvResult struct {
	value string
	err   error
}

func recvAsync(b *Broker) <-chan recvResult {
	ch := make(chan recvResult, 1)
	go func() {
		v, err := b.Recv()
		ch <- recvResult{v, err}
	}()
	return ch
}

func waitResult(t *testing.T, ch <-chan recvResult) recvResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Recv")
		return recvResult{}
	}
}

func TestBroker_SendRecv(t *testing.T) {
	b := NewBroker()
	b.Send("abc")

	if !b.HasPending() {
		t.Error("expected pending value after Send")
	}

	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if got != "abc" {
		t.Errorf("Recv() = %q, want abc", got)
	}
	if b.HasPending() {
		t.Error("expected no pending value after Recv")
	}
}

func TestBroker_CoalescesBurst(t *testing.T) {
	b := NewBroker()
	for _, p := range []string{"a", "ab", "abc", "abcd"} {
		b.Send(p)
	}

	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if got != "abcd" {
		t.Errorf("Recv() = %q, want abcd", got)
	}

	// The older values were discarded, so the next Recv blocks.
	ch := recvAsync(b)
	testutil.Eventually(t, time.Second, func() bool { return b.Waiting() == 1 }, "receiver blocks")
	b.Send("next")
	if r := waitResult(t, ch); r.value != "next" || r.err != nil {
		t.Errorf("Recv() = %q, %v; want next, nil", r.value, r.err)
	}
}

func TestBroker_CoalescesWhileReceiverWaits(t *testing.T) {
	b := NewBroker()
	ch := recvAsync(b)
	testutil.Eventually(t, time.Second, func() bool { return b.Waiting() == 1 }, "receiver blocks")

	// Queue several values while the receiver cannot run yet.
	b.mu.Lock()
	b.queue = append(b.queue, "x", "xy", "xyz")
	b.cond.Signal()
	b.mu.Unlock()

	if r := waitResult(t, ch); r.value != "xyz" {
		t.Errorf("Recv() = %q, want xyz", r.value)
	}
	if b.HasPending() {
		t.Error("expected queue to be drained")
	}
}

func TestBroker_RecvBlocksUntilSend(t *testing.T) {
	b := NewBroker()
	ch := recvAsync(b)

	select {
	case r := <-ch:
		t.Fatalf("Recv returned early: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	b.Send("late")
	if r := waitResult(t, ch); r.value != "late" || r.err != nil {
		t.Errorf("Recv() = %q, %v; want late, nil", r.value, r.err)
	}
}

func TestBroker_CloseWakesReceivers(t *testing.T) {
	b := NewBroker()

	var chans []<-chan recvResult
	for range 3 {
		chans = append(chans, recvAsync(b))
	}
	testutil.Eventually(t, time.Second, func() bool { return b.Waiting() == 3 }, "receivers block")

	b.Close()

	for _, ch := range chans {
		if r := waitResult(t, ch); !errors.Is(r.err, domain.ErrBrokerClosed) {
			t.Errorf("Recv() error = %v, want ErrBrokerClosed", r.err)
		}
	}
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	b.Send("pending")

	b.Close()
	b.Close()

	if !b.IsClosed() {
		t.Error("expected broker to be closed")
	}
	if b.HasPending() {
		t.Error("Close should discard pending values")
	}
	if _, err := b.Recv(); !errors.Is(err, domain.ErrBrokerClosed) {
		t.Errorf("Recv() error = %v, want ErrBrokerClosed", err)
	}

	b.Send("dropped")
	if b.HasPending() {
		t.Error("Send after Close should be dropped")
	}
}

func TestBroker_ConcurrentSenders(t *testing.T) {
	b := NewBroker()
	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b.Send(string(rune('a' + i)))
			}
		}()
	}
	wg.Wait()

	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if len(got) != 1 || got[0] < 'a' || got[0] > 'j' {
		t.Errorf("Recv() = %q, want one of the sent values", got)
	}
	if b.HasPending() {
		t.Error("expected every queued value to be consumed by one Recv")
	}
}

func TestBroker_BusyUntilRelease(t *testing.T) {
	b := NewBroker()
	if b.Busy() {
		t.Fatal("new broker should not be busy")
	}

	b.Send("a")
	b.Send("ab")
	if !b.Busy() {
		t.Error("queued value should make the broker busy")
	}

	if _, err := b.Recv(); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if b.HasPending() {
		t.Error("queue should be empty after Recv")
	}
	if !b.Busy() {
		t.Error("received value should stay busy until Release")
	}

	b.Release()
	if b.Busy() {
		t.Error("broker should be idle after Release")
	}

	// Extra releases are ignored.
	b.Release()
	b.Send("x")
	if !b.Busy() {
		t.Error("Send after a spurious Release should be busy")
	}
}

func TestBroker_Drain(t *testing.T) {
	b := NewBroker()
	b.Send("a")

	drained := make(chan struct{})
	go func() {
		b.Drain()
		close(drained)
	}()

	v, err := b.Recv()
	if err != nil || v != "a" {
		t.Fatalf("Recv() = %q, %v", v, err)
	}
	select {
	case <-drained:
		t.Fatal("Drain returned before the value was released")
	case <-time.After(20 * time.Millisecond):
	}

	b.Release()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after Release")
	}
}

func TestBroker_DrainReturnsOnClose(t *testing.T) {
	b := NewBroker()
	b.Send("never received")

	drained := make(chan struct{})
	go func() {
		b.Drain()
		close(drained)
	}()

	b.Close()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after Close")
	}
}
