//go:build (linux || darwin) && cgo

package pty_test

import (
	"sync"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/k3s-io/native-pty/pkg/pty"
	"github.com/k3s-io/native-pty/pkg/reaper"
)

// readAll drains h until EOF or a deadline, tolerating the occasional EIO a
// PTY master returns once its slave side has no writers left.
func readAll(h *pty.Handle, deadline time.Duration) string {
	out := make([]byte, 0, 256)
	buf := make([]byte, 256)
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		fds := []unix.PollFd{{Fd: int32(h.MasterFd()), Events: unix.POLLIN}}
		ready, perr := unix.Poll(fds, int(time.Until(end).Milliseconds()))
		if perr == unix.EINTR {
			continue
		}
		if ready <= 0 {
			break
		}
		n, err := h.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return string(out)
}

var _ = Describe("pty end-to-end scenarios", func() {
	It("scenario 1: happy path open, spawn, read, wait_blocking", func() {
		h, err := pty.Open(24, 80)
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		Expect(h.Spawn("/bin/echo", []string{"hello-pty"}, nil)).To(Succeed())
		Expect(h.ChildPID()).To(BeNumerically(">", 0))

		output := readAll(h, 2*time.Second)
		Expect(output).To(ContainSubstring("hello-pty"))

		code, err := h.WaitBlocking()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(0))
	})

	It("scenario 2: a second wait after exit returns the same cached result", func() {
		h, err := pty.Open(24, 80)
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		Expect(h.Spawn("/bin/sh", []string{"-c", "exit 7"}, nil)).To(Succeed())

		first, err := h.WaitBlocking()
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(7))

		second, err := h.WaitBlocking()
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))

		third, err := h.Wait()
		Expect(err).NotTo(HaveOccurred())
		Expect(third).To(Equal(first))
	})

	It("scenario 3: exit code survives a foreign reaper racing waitpid(-1)", func() {
		h, err := pty.Open(24, 80)
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		Expect(h.Spawn("/bin/sh", []string{"-c", "exit 5"}, nil)).To(Succeed())

		// Simulate a foreign library in the same process that reaps indiscriminately
		// via waitpid(-1, ...), the exact race spec.md's reaper subsystem exists
		// to survive.
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				var ws unix.WaitStatus
				unix.Wait4(-1, &ws, unix.WNOHANG, nil)
				time.Sleep(time.Millisecond)
			}
		}()

		code, err := h.WaitBlocking()
		close(stop)
		wg.Wait()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(5))
	})

	It("scenario 4: signal termination reports 128+signal", func() {
		h, err := pty.Open(24, 80)
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		Expect(h.Spawn("/bin/sh", []string{"-c", "kill -TERM $$; sleep 5"}, nil)).To(Succeed())

		code, err := h.WaitBlocking()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(128 + 15))
	})

	It("scenario 5: killing an already-exited child is a no-op success", func() {
		h, err := pty.Open(24, 80)
		Expect(err).NotTo(HaveOccurred())
		defer h.Close()

		Expect(h.Spawn("/bin/true", nil, nil)).To(Succeed())

		_, err = h.WaitBlocking()
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Kill(syscall.SIGKILL)).To(Succeed())
	})

	It("scenario 6: a spawn beyond registry capacity still observes its exit via fallback", func() {
		var handles []*pty.Handle
		defer func() {
			for _, h := range handles {
				h.Close()
			}
		}()

		// Saturate the fixed-capacity registry, then spawn one more: Register
		// silently no-ops past Capacity, so this last child must be observed
		// through the waitpid/ESRCH fallback path in WaitBlocking, not the registry.
		for i := 0; i < reaper.Capacity; i++ {
			h, err := pty.Open(24, 80)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Spawn("/bin/sleep", []string{"0.2"}, nil)).To(Succeed())
			handles = append(handles, h)
		}

		overflow, err := pty.Open(24, 80)
		Expect(err).NotTo(HaveOccurred())
		handles = append(handles, overflow)
		Expect(overflow.Spawn("/bin/sh", []string{"-c", "exit 9"}, nil)).To(Succeed())

		code, err := overflow.WaitBlocking()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(9))

		for _, h := range handles[:reaper.Capacity] {
			_, _ = h.WaitBlocking()
		}
	})
})
