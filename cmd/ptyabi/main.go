// Command ptyabi is the thin C-ABI surface spec.md §6 describes: handle-based
// open/spawn/read/write/resize/get-size/get-mode/wait/kill/close entry
// points, exported for `go build -buildmode=c-shared` consumption by a host
// runtime (Node/Dart/etc. FFI, the way containerd's own cgo bindings such as
// canonical/go-dqlite's `internal/bindings` are built).
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/k3s-io/native-pty/pkg/pty"
)

// handles is the opaque-handle table: C callers see only a uint64 id, never
// a Go pointer, matching the uintptr-trampoline pattern used by cgo bindings
// elsewhere in the pack (e.g. canonical/go-dqlite's internal/bindings).
var (
	handlesMu sync.RWMutex
	handles   = make(map[uint64]*pty.Handle)
	nextID    uint64
)

func storeHandle(h *pty.Handle) uint64 {
	id := atomic.AddUint64(&nextID, 1)
	handlesMu.Lock()
	handles[id] = h
	handlesMu.Unlock()
	return id
}

func lookupHandle(id uint64) *pty.Handle {
	handlesMu.RLock()
	defer handlesMu.RUnlock()
	return handles[id]
}

func dropHandle(id uint64) *pty.Handle {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	h := handles[id]
	delete(handles, id)
	return h
}

func resultCode(r pty.Result) C.int { return C.int(r) }

//export PtyOpen
func PtyOpen(rows, cols C.int, outHandle *C.uint64_t) C.int {
	if outHandle == nil {
		return resultCode(pty.ErrNull)
	}
	h, err := pty.Open(uint16(rows), uint16(cols))
	if err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrOpen))
	}
	*outHandle = C.uint64_t(storeHandle(h))
	return resultCode(pty.Ok)
}

// cStringArray converts a null-terminated argv/envp-style array of C strings
// into a Go slice. A nil arr yields a nil slice.
func cStringArray(arr **C.char) []string {
	if arr == nil {
		return nil
	}
	out := []string{}
	for {
		p := *arr
		if p == nil {
			break
		}
		out = append(out, C.GoString(p))
		arr = (**C.char)(unsafe.Add(unsafe.Pointer(arr), unsafe.Sizeof(p)))
	}
	return out
}

//export PtySpawn
func PtySpawn(handle C.uint64_t, cmd *C.char, argv **C.char, envp **C.char) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil || cmd == nil {
		return resultCode(pty.ErrNull)
	}
	cmdPath := C.GoString(cmd)
	// argv[0] is the caller's redundant copy of cmd; pty.Spawn's argv excludes
	// it and supplies cmdPath itself for that slot (spec.md §4.5).
	fullArgv := cStringArray(argv)
	var args []string
	if len(fullArgv) > 1 {
		args = fullArgv[1:]
	}
	var env []string
	if envp != nil {
		env = cStringArray(envp)
	}
	if err := h.Spawn(cmdPath, args, env); err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrSpawn))
	}
	return resultCode(pty.Ok)
}

//export PtyRead
func PtyRead(handle C.uint64_t, buf *C.char, length C.int) C.longlong {
	h := lookupHandle(uint64(handle))
	if h == nil || buf == nil || length <= 0 {
		return -1
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(length))
	n, err := h.Read(dst)
	if err != nil && n == 0 {
		return 0 // EOF, per spec.md §6
	}
	if n < 0 {
		return -1
	}
	return C.longlong(n)
}

//export PtyWrite
func PtyWrite(handle C.uint64_t, buf *C.char, length C.int) C.longlong {
	h := lookupHandle(uint64(handle))
	if h == nil || buf == nil || length <= 0 {
		return -1
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(length))
	n, err := h.Write(src)
	if err != nil {
		return -1
	}
	return C.longlong(n)
}

//export PtyResize
func PtyResize(handle C.uint64_t, rows, cols C.int) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil {
		return resultCode(pty.ErrNull)
	}
	if err := h.Resize(uint16(rows), uint16(cols)); err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrResize))
	}
	return resultCode(pty.Ok)
}

//export PtyGetSize
func PtyGetSize(handle C.uint64_t, outRows, outCols, outPixW, outPixH *C.int) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil || outRows == nil || outCols == nil {
		return resultCode(pty.ErrNull)
	}
	size, err := h.GetSize()
	if err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrSize))
	}
	*outRows = C.int(size.Rows)
	*outCols = C.int(size.Cols)
	if outPixW != nil {
		*outPixW = C.int(size.PixelW)
	}
	if outPixH != nil {
		*outPixH = C.int(size.PixelH)
	}
	return resultCode(pty.Ok)
}

//export PtyGetMode
func PtyGetMode(handle C.uint64_t, outCanonical, outEcho *C.int) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil || outCanonical == nil || outEcho == nil {
		return resultCode(pty.ErrNull)
	}
	canonical, echo, err := h.GetMode()
	if err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrMode))
	}
	*outCanonical = boolToC(canonical)
	*outEcho = boolToC(echo)
	return resultCode(pty.Ok)
}

func boolToC(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

//export PtyChildPid
func PtyChildPid(handle C.uint64_t) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil {
		return -1
	}
	return C.int(h.ChildPID())
}

//export PtyMasterFd
func PtyMasterFd(handle C.uint64_t) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil {
		return -1
	}
	return C.int(h.MasterFd())
}

//export PtyProcessGroupLeader
func PtyProcessGroupLeader(handle C.uint64_t) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil {
		return -1
	}
	pgid, err := h.ProcessGroupLeader()
	if err != nil {
		return -1
	}
	return C.int(pgid)
}

//export PtyWait
func PtyWait(handle C.uint64_t, outStatus *C.int) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil || outStatus == nil {
		return resultCode(pty.ErrNull)
	}
	code, err := h.Wait()
	if err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrWait))
	}
	*outStatus = C.int(code)
	return resultCode(pty.Ok)
}

//export PtyWaitBlocking
func PtyWaitBlocking(handle C.uint64_t, outStatus *C.int) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil || outStatus == nil {
		return resultCode(pty.ErrNull)
	}
	code, err := h.WaitBlocking()
	if err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrWaitBlocking))
	}
	*outStatus = C.int(code)
	return resultCode(pty.Ok)
}

//export PtyKill
func PtyKill(handle C.uint64_t, signal C.int) C.int {
	h := lookupHandle(uint64(handle))
	if h == nil {
		return resultCode(pty.ErrNull)
	}
	if err := h.Kill(syscall.Signal(signal)); err != nil {
		return resultCode(pty.ResultOf(err, pty.ErrKill))
	}
	return resultCode(pty.Ok)
}

//export PtyClose
func PtyClose(handle C.uint64_t) C.int {
	h := dropHandle(uint64(handle))
	if h == nil {
		return resultCode(pty.Ok) // idempotent with an already-closed/unknown handle
	}
	_ = h.Close()
	return resultCode(pty.Ok)
}

func main() {}
