package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter 在每个固定窗口内最多放行 limit 次。
type FixedWindowCounter struct {
	limit  int
	window time.Duration
	count  int
	start  time.Time
	now    func() time.Time
	mutex  sync.Mutex
}

func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	fw := &FixedWindowCounter{limit: limit, window: window, now: time.Now}
	fw.start = fw.now()
	return fw
}

func (fw *FixedWindowCounter) Allow() bool {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	now := fw.now()
	if !now.Before(fw.start.Add(fw.window)) {
		fw.start = now
		fw.count = 0
	}
	if fw.count >= fw.limit {
		return false
	}
	fw.count++
	return true
}

// SlidingWindowLog 记录窗口内每次放行的时间，精确但内存与 limit 成正比。
type SlidingWindowLog struct {
	limit  int
	window time.Duration
	times  []time.Time // 按时间递增
	now    func() time.Time
	mutex  sync.Mutex
}

func NewSlidingWindowLog(limit int, window time.Duration) *SlidingWindowLog {
	return &SlidingWindowLog{limit: limit, window: window, now: time.Now}
}

func (sl *SlidingWindowLog) Allow() bool {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	now := sl.now()
	boundary := now.Add(-sl.window)
	drop := 0
	for drop < len(sl.times) && !sl.times[drop].After(boundary) {
		drop++
	}
	sl.times = sl.times[drop:]

	if len(sl.times) >= sl.limit {
		return false
	}
	sl.times = append(sl.times, now)
	return true
}

// SlidingWindowCounter 把窗口分成若干桶，按桶计数。内存固定，精度取决于桶的数量。
type SlidingWindowCounter struct {
	limit      int
	bucketSize time.Duration
	buckets    []int
	current    int
	last       time.Time
	now        func() time.Time
	mutex      sync.Mutex
}

// NewSlidingWindowCounter 创建滑动窗口计数器，numBuckets <= 0 时使用 10 个桶。
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	sc := &SlidingWindowCounter{
		limit:      limit,
		bucketSize: window / time.Duration(numBuckets),
		buckets:    make([]int, numBuckets),
		now:        time.Now,
	}
	sc.last = sc.now()
	return sc
}

// slide 把过期的桶清零，调用方持有锁。
func (sc *SlidingWindowCounter) slide(now time.Time) {
	if sc.bucketSize <= 0 {
		return
	}
	steps := int(now.Sub(sc.last) / sc.bucketSize)
	if steps <= 0 {
		return
	}
	n := len(sc.buckets)
	for i := 1; i <= steps && i <= n; i++ {
		sc.buckets[(sc.current+i)%n] = 0
	}
	sc.current = (sc.current + steps) % n
	sc.last = sc.last.Add(time.Duration(steps) * sc.bucketSize)
}

func (sc *SlidingWindowCounter) Allow() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.slide(sc.now())
	total := 0
	for _, c := range sc.buckets {
		total += c
	}
	if total >= sc.limit {
		return false
	}
	sc.buckets[sc.current]++
	return true
}
