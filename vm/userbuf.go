package vm

import "github.com/Veneto723/Illinux/kerr"

// ValidatePtr checks that every page in [va, va+n) is mapped in s with
// at least the permissions in need. It must use the bitwise subset
// check Perm.Has provides rather than a boolean AND of the two
// permission sets: the earlier faulty behavior accepted a pointer as
// long as have and need shared any single bit, which let, for
// instance, a read-only page pass a write check whenever both also
// happened to carry PermU.
func (s *Space) ValidatePtr(va uintptr, n int, need Perm) bool {
	if n < 0 {
		return false
	}
	if n == 0 {
		return true
	}
	start := pageBase(va)
	end := pageBase(va + uintptr(n) - 1)
	for p := start; ; p += mem_PageSize {
		_, have, ok := s.Lookup(p)
		if !ok || !need.Has(have) {
			return false
		}
		if p == end {
			break
		}
	}
	return true
}

const mem_PageSize = 1 << offsetBits

// ValidateStr checks that a NUL-terminated string starting at va, of at
// most maxlen bytes, lies entirely within pages mapped with at least
// PermR|PermU, and returns its length (excluding the terminator) if so.
// Like ValidatePtr, this uses the bitwise subset check.
func (s *Space) ValidateStr(va uintptr, maxlen int) (length int, ok bool) {
	need := PermR | PermU
	for i := 0; i < maxlen; i++ {
		p := va + uintptr(i)
		if !s.ValidatePtr(p, 1, need) {
			return 0, false
		}
		b, err := s.readByte(p)
		if err != nil {
			return 0, false
		}
		if b == 0 {
			return i, true
		}
	}
	return 0, false
}

func (s *Space) readByte(va uintptr) (byte, error) {
	frame, _, ok := s.Lookup(va)
	if !ok {
		return 0, kerr.EINVAL
	}
	return s.pool.At(frame)[va&pageMask], nil
}

// CopyIn copies n bytes from user address va into dst, validating the
// source range for PermR|PermU first. It mirrors the teacher's
// page-fault-safe Userbuf_t copy loop by walking the mapping once per
// page rather than trusting a single contiguous host pointer.
func (s *Space) CopyIn(va uintptr, dst []byte) error {
	if !s.ValidatePtr(va, len(dst), PermR|PermU) {
		return kerr.EINVAL
	}
	return s.copyPages(va, dst, false)
}

// CopyOut copies src into n bytes at user address va, validating the
// destination range for PermW|PermU first.
func (s *Space) CopyOut(va uintptr, src []byte) error {
	if !s.ValidatePtr(va, len(src), PermW|PermU) {
		return kerr.EINVAL
	}
	return s.copyPages(va, src, true)
}

func (s *Space) copyPages(va uintptr, buf []byte, toUser bool) error {
	remaining := buf
	cur := va
	for len(remaining) > 0 {
		frame, _, ok := s.Lookup(cur)
		if !ok {
			return kerr.EINVAL
		}
		pageOff := int(cur & pageMask)
		n := len(remaining)
		if max := mem_PageSize - pageOff; n > max {
			n = max
		}
		page := s.pool.At(frame)
		if toUser {
			copy(page[pageOff:pageOff+n], remaining[:n])
		} else {
			copy(remaining[:n], page[pageOff:pageOff+n])
		}
		remaining = remaining[n:]
		cur += uintptr(n)
	}
	return nil
}
