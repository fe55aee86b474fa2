package scan

const (
	defaultChunkSize = 1 << 20
	defaultPageSize  = 4096
)

// Option is a function that configures a Session
type Option func(*Session)

// WithFastScan restricts first-pass addresses to multiples of the value width
func WithFastScan(enabled bool) Option {
	return func(s *Session) {
		s.fastScan = enabled
	}
}

// WithChunkSize sets how many bytes of a region are read per call during the first pass
func WithChunkSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.chunkSize = uint64(size)
		}
	}
}

// WithPageSize sets the fallback read granularity for unreadable chunks and
// the window used to batch neighbouring candidates during refine passes
func WithPageSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.pageSize = uint64(size)
		}
	}
}

// WithMaxDOP sets how many regions are scanned in parallel during the first pass
func WithMaxDOP(maxdop uint) Option {
	return func(s *Session) {
		if maxdop > 0 {
			s.maxdop = maxdop
		}
	}
}
