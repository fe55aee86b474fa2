// Package scan implements the search half of the engine: a first pass over
// memory regions that collects every address whose value satisfies a
// predicate, then refine passes that re-read only the surviving candidates.
package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/value"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// State of a scan session
type State uint8

const (
	Idle State = iota
	FirstPass
	Narrowing
	Empty
	HasCandidates
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FirstPass:
		return "first-pass"
	case Narrowing:
		return "narrowing"
	case Empty:
		return "empty"
	case HasCandidates:
		return "has-candidates"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Candidate is an address still believed to hold a matching value
type Candidate struct {
	Address   process.ProcessMemoryAddress
	LastValue value.Value
}

// PassResult summarises one scan pass
type PassResult struct {
	Pass      int
	Operation Operation
	Scanned   uint64 // addresses tested
	Matched   int    // candidates after the pass
	Removed   int    // candidates dropped by a refine pass
	Faults    int    // unreadable pages (first pass) or candidates (refine)
	NoRegions bool
	Elapsed   time.Duration
}

// Progress is a point-in-time view for display while a pass runs
type Progress struct {
	State           State
	Passes          int
	RegionsDone     int
	RegionsTotal    int
	CandidatesDone  int
	CandidatesTotal int
	Candidates      int
	Faults          int
}

// Session holds the live candidate set of one search. Start and Refine block
// and must not be called from latency sensitive goroutines; every read-only
// accessor is safe to call while a pass runs.
type Session struct {
	acc process.MemoryAccessor
	log *logger.Logger

	fastScan  bool
	chunkSize uint64
	pageSize  uint64
	maxdop    uint

	mu     sync.RWMutex
	state  State
	dt     value.DataType
	addrs  []process.ProcessMemoryAddress
	values []byte // LastValue bytes, dt.Size() per candidate
	passes int
	gen    uint64

	busy            atomic.Bool
	regionsDone     atomic.Int64
	regionsTotal    atomic.Int64
	candidatesDone  atomic.Int64
	candidatesTotal atomic.Int64
	faults          atomic.Int64
}

// NewSession creates an idle session reading through acc
func NewSession(acc process.MemoryAccessor, options ...Option) *Session {
	s := &Session{
		acc:       acc,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "scan")),
		fastScan:  true,
		chunkSize: defaultChunkSize,
		pageSize:  defaultPageSize,
		maxdop:    1,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// SetFastScan changes the alignment mode used by the next first pass
func (s *Session) SetFastScan(enabled bool) {
	s.mu.Lock()
	s.fastScan = enabled
	s.mu.Unlock()
}

func (s *Session) FastScan() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fastScan
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DataType is the type of the current search; zero while Idle
func (s *Session) DataType() value.DataType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dt
}

// Count returns the number of candidates without copying them
func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.addrs)
}

// Candidates returns a copy of the candidate set in ascending address order.
// It never reads target memory.
func (s *Session) Candidates() []Candidate {
	return s.CandidatesN(-1)
}

// CandidatesN returns at most n candidates (all when n < 0)
func (s *Session) CandidatesN(n int) []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := len(s.addrs)
	if n >= 0 && n < count {
		count = n
	}

	size := s.dt.Size()
	out := make([]Candidate, count)
	for i := 0; i < count; i++ {
		v, _ := value.FromBytes(s.dt, s.values[i*size:(i+1)*size])
		out[i] = Candidate{Address: s.addrs[i], LastValue: v}
	}
	return out
}

func (s *Session) Progress() Progress {
	s.mu.RLock()
	p := Progress{
		State:      s.state,
		Passes:     s.passes,
		Candidates: len(s.addrs),
	}
	s.mu.RUnlock()

	p.RegionsDone = int(s.regionsDone.Load())
	p.RegionsTotal = int(s.regionsTotal.Load())
	p.CandidatesDone = int(s.candidatesDone.Load())
	p.CandidatesTotal = int(s.candidatesTotal.Load())
	p.Faults = int(s.faults.Load())
	return p
}

// Reset drops every candidate and returns to Idle. A pass running
// concurrently finishes with ErrAborted and its results are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.state = Idle
	s.dt = value.DataType{}
	s.addrs = nil
	s.values = nil
	s.passes = 0
	s.gen++
}

// Start runs the first pass over regions. Previous results are discarded.
// An unsized array/string type takes its width from the predicate value.
func (s *Session) Start(ctx context.Context, regions []memory_map.Region, dt value.DataType, pred Predicate) (PassResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return PassResult{}, ErrBusy
	}
	defer s.busy.Store(false)

	if !s.acc.IsAvailable() {
		return PassResult{}, process.ErrCapabilityUnavailable
	}

	if dt.IsVariable() && dt.Size() == 0 {
		if pred.Op.Operands() == 0 {
			return PassResult{}, fmt.Errorf("%w: %s scans need a value to size %s", ErrInvalidPredicate, pred.Op, dt.Kind())
		}
		dt = pred.Value.Type()
	}
	if err := pred.validate(dt, true); err != nil {
		return PassResult{}, err
	}

	regions = snapshotRegions(regions)

	s.mu.Lock()
	s.resetLocked()
	s.state = FirstPass
	s.dt = dt
	gen := s.gen
	fastScan := s.fastScan
	s.mu.Unlock()

	s.regionsDone.Store(0)
	s.regionsTotal.Store(int64(len(regions)))
	s.candidatesDone.Store(0)
	s.candidatesTotal.Store(0)
	s.faults.Store(0)

	started := time.Now()
	res := PassResult{Operation: pred.Op}

	if len(regions) == 0 {
		s.log.Infoln("No regions available, scan is empty")
		res.NoRegions = true
		return s.commit(gen, res, nil, nil, started)
	}

	align := uint64(1)
	if fastScan {
		align = uint64(dt.Alignment())
	}

	s.log.Infoln("Starting first pass:", pred, "as", dt, "over", len(regions), "regions, align", align)

	results, err := s.scanRegions(ctx, regions, dt, pred.matcher(dt), align)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.abort(gen)
		s.log.Infoln("First pass stopped:", err)
		return PassResult{}, err
	}

	// regions are sorted by base; drop addresses already produced by an overlapping region
	var addrs []process.ProcessMemoryAddress
	var values []byte
	size := dt.Size()
	for _, rr := range results {
		res.Scanned += rr.scanned
		res.Faults += rr.faults
		for i, addr := range rr.addrs {
			if len(addrs) > 0 && addr <= addrs[len(addrs)-1] {
				continue
			}
			addrs = append(addrs, addr)
			values = append(values, rr.values[i*size:(i+1)*size]...)
		}
	}

	return s.commit(gen, res, addrs, values, started)
}

// Refine re-reads every candidate and keeps those satisfying pred. Fixed
// operations compare with the predicate values, relative operations with the
// value seen by the previous pass. The candidate set never grows.
func (s *Session) Refine(ctx context.Context, pred Predicate) (PassResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return PassResult{}, ErrBusy
	}
	defer s.busy.Store(false)

	if !s.acc.IsAvailable() {
		return PassResult{}, process.ErrCapabilityUnavailable
	}

	s.mu.Lock()
	if s.state != HasCandidates {
		state := s.state
		s.mu.Unlock()
		return PassResult{}, fmt.Errorf("%w: refine from %s", ErrInvalidState, state)
	}
	dt := s.dt
	if err := pred.validate(dt, false); err != nil {
		s.mu.Unlock()
		return PassResult{}, err
	}
	// the old slices are never mutated, Candidates keeps serving them while narrowing
	prevAddrs, prevValues := s.addrs, s.values
	s.state = Narrowing
	gen := s.gen
	s.mu.Unlock()

	s.regionsDone.Store(0)
	s.regionsTotal.Store(0)
	s.candidatesDone.Store(0)
	s.candidatesTotal.Store(int64(len(prevAddrs)))
	s.faults.Store(0)

	started := time.Now()
	res := PassResult{Operation: pred.Op}

	s.log.Infoln("Refining", len(prevAddrs), "candidates:", pred)

	addrs, values, err := s.refineCandidates(ctx, prevAddrs, prevValues, dt, pred.matcher(dt), &res)
	if err != nil {
		s.abort(gen)
		s.log.Infoln("Refine pass stopped:", err)
		return PassResult{}, err
	}

	res.Removed = len(prevAddrs) - len(addrs)
	return s.commit(gen, res, addrs, values, started)
}

// commit publishes the pass results unless a Reset happened meanwhile
func (s *Session) commit(gen uint64, res PassResult, addrs []process.ProcessMemoryAddress, values []byte, started time.Time) (PassResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return PassResult{}, ErrAborted
	}

	s.addrs = addrs
	s.values = values
	s.passes++
	if len(addrs) == 0 {
		s.state = Empty
	} else {
		s.state = HasCandidates
	}

	res.Pass = s.passes
	res.Matched = len(addrs)
	res.Elapsed = time.Since(started)

	s.log.Infoln("Pass", res.Pass, "complete:", res.Matched, "candidates,", res.Faults, "faults, took", res.Elapsed)
	return res, nil
}

// abort reverts to Idle after a cancelled pass
func (s *Session) abort(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.resetLocked()
	}
}

// snapshotRegions copies, sorts and drops empty regions
func snapshotRegions(regions []memory_map.Region) []memory_map.Region {
	out := make([]memory_map.Region, 0, len(regions))
	for _, r := range regions {
		if r.Length == 0 {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Base < out[j].Base
	})
	return out
}

type regionResult struct {
	addrs   []process.ProcessMemoryAddress
	values  []byte
	scanned uint64
	faults  int
}

// scanRegions runs scanRegion over every region, up to maxdop at a time.
// Results keep region order so candidate order is deterministic. The first
// region that loses the target stops the others and its error is returned.
func (s *Session) scanRegions(ctx context.Context, regions []memory_map.Region, dt value.DataType, m matcher, align uint64) ([]regionResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]regionResult, len(regions))

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	maxdop := s.maxdop
	if numCPU := uint(runtime.NumCPU()); maxdop > numCPU {
		maxdop = numCPU
	}

	if maxdop <= 1 {
		for i, r := range regions {
			if ctx.Err() != nil {
				break
			}
			rr, err := s.scanRegion(ctx, r, dt, m, align)
			if err != nil {
				fail(err)
				break
			}
			results[i] = rr
			s.regionsDone.Add(1)
		}
		return results, firstErr
	}

	// Create a semaphore to limit concurrency
	sem := make(chan struct{}, maxdop)
	var wg sync.WaitGroup

	for i, r := range regions {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(i int, r memory_map.Region) {
			defer func() {
				<-sem
				wg.Done()
			}()

			rr, err := s.scanRegion(ctx, r, dt, m, align)
			if err != nil {
				fail(err)
				return
			}
			results[i] = rr
			s.regionsDone.Add(1)
		}(i, r)
	}

	wg.Wait()
	return results, firstErr
}

// scanRegion reads r in chunks that overlap by size-1 bytes so values crossing
// a chunk boundary are still seen. A chunk that cannot be read is retried page
// by page, each page again extended by size-1 bytes; only a page that cannot be
// read even on its own is skipped and counted as a fault. Losing the target
// ends the region with process.ErrCapabilityUnavailable.
func (s *Session) scanRegion(ctx context.Context, r memory_map.Region, dt value.DataType, m matcher, align uint64) (regionResult, error) {
	var rr regionResult

	size := uint64(dt.Size())
	if r.Length < size {
		return rr, nil
	}

	chunk := s.chunkSize
	if chunk < size {
		chunk = size
	}

	for base := r.Base; base < r.End(); base += chunk {
		if ctx.Err() != nil {
			return rr, nil
		}

		// starting addresses [base, stop) with their bytes ending by r.End()
		stop := min(base+chunk, r.End())
		end := min(stop+size-1, r.End())

		data, err := s.acc.ReadMemory(process.ProcessMemoryAddress(base), process.ProcessMemorySize(end-base))
		if err == nil {
			rr.scanBuffer(base, data, base, stop, size, align, m)
			continue
		}
		if errors.Is(err, process.ErrCapabilityUnavailable) {
			return rr, err
		}

		s.log.Debugln("Failed to read chunk at", fmt.Sprintf("%x", base), err)

		for page := base; page < stop; page += s.pageSize {
			if ctx.Err() != nil {
				return rr, nil
			}

			pageEnd := min(page+s.pageSize, stop)
			data, err := s.readPage(page, pageEnd, min(pageEnd+size-1, r.End()))
			if errors.Is(err, process.ErrCapabilityUnavailable) {
				return rr, err
			}
			if err != nil {
				rr.faults++
				s.faults.Add(1)
				continue
			}
			rr.scanBuffer(page, data, page, pageEnd, size, align, m)
		}
	}

	return rr, nil
}

// readPage reads [page, tail), falling back to [page, pageEnd) when the bytes
// past the page are unreadable
func (s *Session) readPage(page, pageEnd, tail uint64) ([]byte, error) {
	data, err := s.acc.ReadMemory(process.ProcessMemoryAddress(page), process.ProcessMemorySize(tail-page))
	if err == nil || tail == pageEnd || errors.Is(err, process.ErrCapabilityUnavailable) {
		return data, err
	}
	return s.acc.ReadMemory(process.ProcessMemoryAddress(page), process.ProcessMemorySize(pageEnd-page))
}

// scanBuffer tests every aligned address in [from, stop) whose value lies in data (which starts at bufBase)
func (rr *regionResult) scanBuffer(bufBase uint64, data []byte, from, stop, size, align uint64, m matcher) {
	bufEnd := bufBase + uint64(len(data))
	for addr := alignUp(from, align); addr < stop && addr+size <= bufEnd; addr += align {
		off := addr - bufBase
		cur := data[off : off+size]
		rr.scanned++
		if m.match(cur, nil) {
			rr.addrs = append(rr.addrs, process.ProcessMemoryAddress(addr))
			rr.values = append(rr.values, cur...)
		}
	}
}

// refineCandidates re-reads candidates in batches of neighbours that fit one
// page window; a batch that fails is retried candidate by candidate and each
// unreadable candidate is dropped and counted as a fault. Losing the target
// stops the pass.
func (s *Session) refineCandidates(
	ctx context.Context,
	prevAddrs []process.ProcessMemoryAddress,
	prevValues []byte,
	dt value.DataType,
	m matcher,
	res *PassResult,
) ([]process.ProcessMemoryAddress, []byte, error) {
	size := dt.Size()
	done := ctx.Done()

	var addrs []process.ProcessMemoryAddress
	var values []byte

	keep := func(i int, cur []byte) {
		res.Scanned++
		if m.match(cur, prevValues[i*size:(i+1)*size]) {
			addrs = append(addrs, prevAddrs[i])
			values = append(values, cur...)
		}
	}

	window := s.pageSize
	if window < uint64(size) {
		window = uint64(size)
	}

	for i := 0; i < len(prevAddrs); {
		first := uint64(prevAddrs[i])
		j := i + 1
		for j < len(prevAddrs) && uint64(prevAddrs[j])+uint64(size)-first <= window {
			j++
		}
		span := uint64(prevAddrs[j-1]) + uint64(size) - first

		data, err := s.acc.ReadMemory(prevAddrs[i], process.ProcessMemorySize(span))
		if errors.Is(err, process.ErrCapabilityUnavailable) {
			return nil, nil, err
		}
		for k := i; k < j; k++ {
			select {
			case <-done:
				return nil, nil, ctx.Err()
			default:
			}

			if err == nil {
				off := uint64(prevAddrs[k]) - first
				keep(k, data[off:off+uint64(size)])
				continue
			}

			cur, rerr := s.acc.ReadMemory(prevAddrs[k], process.ProcessMemorySize(size))
			if errors.Is(rerr, process.ErrCapabilityUnavailable) {
				return nil, nil, rerr
			}
			if rerr != nil || len(cur) != size {
				res.Faults++
				s.faults.Add(1)
				continue
			}
			keep(k, cur)
		}

		s.candidatesDone.Add(int64(j - i))
		i = j
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return addrs, values, nil
}

func alignUp(addr, align uint64) uint64 {
	if align <= 1 {
		return addr
	}
	return (addr + align - 1) / align * align
}
